package device

import "sync"

// State is the authoritative in-memory mirror of the last values the kettle
// reported. It is created once at startup with every field unknown and only
// ever mutated through Apply and Reset.
type State struct {
	mu           sync.RWMutex
	power        Power
	targetTemp   Temp
	targetScale  Scale
	currentTemp  Temp
	currentScale Scale
}

// Snapshot is a point-in-time copy of the mirror.
type Snapshot struct {
	Power        Power
	TargetTemp   Temp
	TargetScale  Scale
	CurrentTemp  Temp
	CurrentScale Scale
}

func NewState() *State {
	return &State{
		power:        PowerUnknown,
		targetTemp:   UnknownTemp(),
		targetScale:  ScaleUnknown,
		currentTemp:  UnknownTemp(),
		currentScale: ScaleUnknown,
	}
}

// Apply commits the fields present in the update and returns one change per
// field whose value actually differed, in a fixed field order. Fields absent
// from the update are never perturbed; applying the same update twice yields
// no changes the second time.
func (s *State) Apply(update Update) []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changes []Change
	if update.Power != nil && s.power != *update.Power {
		changes = append(changes, Change{Field: FieldPower, Old: string(s.power), New: string(*update.Power)})
		s.power = *update.Power
	}
	if update.TargetTemp != nil && !s.targetTemp.Equal(*update.TargetTemp) {
		changes = append(changes, Change{Field: FieldTargetTemp, Old: s.targetTemp.String(), New: update.TargetTemp.String()})
		s.targetTemp = *update.TargetTemp
	}
	if update.TargetScale != nil && s.targetScale != *update.TargetScale {
		changes = append(changes, Change{Field: FieldTargetScale, Old: string(s.targetScale), New: string(*update.TargetScale)})
		s.targetScale = *update.TargetScale
	}
	if update.CurrentTemp != nil && !s.currentTemp.Equal(*update.CurrentTemp) {
		changes = append(changes, Change{Field: FieldCurrentTemp, Old: s.currentTemp.String(), New: update.CurrentTemp.String()})
		s.currentTemp = *update.CurrentTemp
	}
	if update.CurrentScale != nil && s.currentScale != *update.CurrentScale {
		changes = append(changes, Change{Field: FieldCurrentScale, Old: string(s.currentScale), New: string(*update.CurrentScale)})
		s.currentScale = *update.CurrentScale
	}

	return changes
}

// Reset forces every field back to unknown and reports a change for every
// field regardless of its previous value. Observers rely on the full batch to
// learn the kettle went away, so fields already unknown are included too.
func (s *State) Reset() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := []Change{
		{Field: FieldPower, Old: string(s.power), New: string(PowerUnknown)},
		{Field: FieldTargetTemp, Old: s.targetTemp.String(), New: UnknownTemp().String()},
		{Field: FieldTargetScale, Old: string(s.targetScale), New: string(ScaleUnknown)},
		{Field: FieldCurrentTemp, Old: s.currentTemp.String(), New: UnknownTemp().String()},
		{Field: FieldCurrentScale, Old: string(s.currentScale), New: string(ScaleUnknown)},
	}

	s.power = PowerUnknown
	s.targetTemp = UnknownTemp()
	s.targetScale = ScaleUnknown
	s.currentTemp = UnknownTemp()
	s.currentScale = ScaleUnknown

	return changes
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Power:        s.power,
		TargetTemp:   s.targetTemp,
		TargetScale:  s.targetScale,
		CurrentTemp:  s.currentTemp,
		CurrentScale: s.currentScale,
	}
}
