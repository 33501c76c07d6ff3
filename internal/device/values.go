package device

import "strconv"

// Power is the kettle's reported power switch position.
type Power string

const (
	PowerUnknown Power = "unknown"
	PowerOn      Power = "on"
	PowerOff     Power = "off"
)

// Scale is the temperature unit the kettle reports values in.
type Scale string

const (
	ScaleUnknown    Scale = "unknown"
	ScaleCelsius    Scale = "C"
	ScaleFahrenheit Scale = "F"
)

type TempStatus int

const (
	TempStatusUnknown TempStatus = iota + 1
	TempStatusUnavailable
	TempStatusKnown
)

// Temp is a temperature reading with an explicit sentinel status.
// Unknown means the kettle has not reported the field yet; unavailable means
// the kettle reported a reading below its measurable range (it idles at 32).
// The two sentinels are distinct from each other and from any degree value.
type Temp struct {
	Status  TempStatus
	Degrees int
}

func UnknownTemp() Temp {
	return Temp{Status: TempStatusUnknown}
}

func UnavailableTemp() Temp {
	return Temp{Status: TempStatusUnavailable}
}

func KnownTemp(degrees int) Temp {
	return Temp{Status: TempStatusKnown, Degrees: degrees}
}

// Known returns the degree value when the reading holds one.
func (t Temp) Known() (int, bool) {
	if t.Status != TempStatusKnown {
		return 0, false
	}

	return t.Degrees, true
}

func (t Temp) Equal(other Temp) bool {
	if t.Status != other.Status {
		return false
	}
	if t.Status != TempStatusKnown {
		return true
	}

	return t.Degrees == other.Degrees
}

func (t Temp) String() string {
	switch t.Status {
	case TempStatusUnavailable:
		return "unavailable"
	case TempStatusKnown:
		return strconv.Itoa(t.Degrees)
	default:
		return "unknown"
	}
}

// Field names one mirrored kettle value in change events and the journal.
type Field string

const (
	FieldPower        Field = "power"
	FieldTargetTemp   Field = "target_temp"
	FieldTargetScale  Field = "target_scale"
	FieldCurrentTemp  Field = "current_temp"
	FieldCurrentScale Field = "current_scale"
)

// Change records one field transition observed by the state mirror.
type Change struct {
	Field Field
	Old   string
	New   string
}

// Update is a sparse set of decoded field values. Nil fields are untouched
// when the update is applied.
type Update struct {
	Power        *Power
	TargetTemp   *Temp
	TargetScale  *Scale
	CurrentTemp  *Temp
	CurrentScale *Scale
}

// IsZero reports whether the update carries no fields at all.
func (u Update) IsZero() bool {
	return u.Power == nil && u.TargetTemp == nil && u.TargetScale == nil &&
		u.CurrentTemp == nil && u.CurrentScale == nil
}
