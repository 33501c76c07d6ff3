package mqtt

import (
	"encoding/json"
	"fmt"

	"kettlebridge/internal/app"
	"kettlebridge/internal/device"
)

// Home Assistant picks entities up from retained config payloads under its
// discovery prefix. The sensor expires after five minutes without a report,
// which matches a dead bridge closely enough.
const sensorExpireAfterSeconds = 300

func (br *Bridge) publishDiscovery() error {
	switchConfig := map[string]any{
		"name":               "Kettle",
		"unique_id":          "kettlebridge_switch",
		"icon":               "mdi:kettle",
		"state_topic":        TopicSwitchState,
		"command_topic":      TopicSwitchSet,
		"availability_topic": TopicAvailability,
		"payload_on":         string(device.PowerOn),
		"payload_off":        string(device.PowerOff),
		"device":             deviceInfo(),
	}

	sensorConfig := map[string]any{
		"name":                "Kettle Temperature",
		"unique_id":           "kettlebridge_temperature",
		"device_class":        "temperature",
		"state_topic":         TopicSensorTemp,
		"availability_topic":  TopicAvailability,
		"unit_of_measurement": br.temperatureUnit(),
		"expire_after":        sensorExpireAfterSeconds,
		"device":              deviceInfo(),
	}

	if err := br.publishConfig(TopicSwitchConfig, switchConfig); err != nil {
		return err
	}

	return br.publishConfig(TopicSensorConfig, sensorConfig)
}

func (br *Bridge) publishConfig(topic string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discovery payload for %s: %w", topic, err)
	}

	return br.sink.Publish(topic, string(raw), true)
}

// temperatureUnit follows the scale the kettle last reported. Before the
// first report the unit defaults to Celsius; a later scale change shows up
// on the scale topics either way.
func (br *Bridge) temperatureUnit() string {
	if br.state.Snapshot().CurrentScale == device.ScaleFahrenheit {
		return "°F"
	}

	return "°C"
}

func deviceInfo() map[string]any {
	return map[string]any{
		"identifiers":  []string{"kettlebridge"},
		"name":         "Stagg EKG+",
		"manufacturer": "Fellow",
		"model":        "Stagg EKG+",
		"sw_version":   app.BuildVersion(),
	}
}
