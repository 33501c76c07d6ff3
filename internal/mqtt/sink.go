// Package mqtt publishes the kettle mirror to a broker and turns inbound
// command topics into kettle control calls.
package mqtt

// Broker topic contract. The switch pair lives under the Home Assistant
// discovery prefix, the temperature detail topics under a plain kitchen
// hierarchy.
const (
	TopicAvailability   = "kitchen/kettle/available"
	TopicSwitchState    = "homeassistant/switch/kettle/state"
	TopicSwitchSet      = "homeassistant/switch/kettle/set"
	TopicSwitchConfig   = "homeassistant/switch/kettle/config"
	TopicSensorTemp     = "homeassistant/sensor/kettle/temperature"
	TopicSensorConfig   = "homeassistant/sensor/kettle/config"
	TopicTargetTemp     = "kitchen/kettle/temperature/target"
	TopicTargetScale    = "kitchen/kettle/temperature/target/scale"
	TopicCurrentScale   = "kitchen/kettle/temperature/scale"
	TopicTemperatureSet = "kitchen/kettle/temperature/set"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	// What the sensor topic carries while the kettle cannot measure,
	// typically because it sits off its base.
	payloadNoReading = "--"
)

// Sink is the broker capability the bridge needs. PahoSink implements it
// against a real broker; tests substitute a recording fake.
type Sink interface {
	Publish(topic, payload string, retain bool) error
	Subscribe(topic string, handler func(topic, payload string)) error
	Connected() bool
}
