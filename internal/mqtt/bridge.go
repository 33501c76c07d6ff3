package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"kettlebridge/internal/bus"
	"kettlebridge/internal/connectors"
	"kettlebridge/internal/device"
	"kettlebridge/internal/kettle"
	"kettlebridge/internal/protocol"
)

// Commander is the slice of the kettle service the bridge drives.
type Commander interface {
	PowerOn() <-chan kettle.CommandResult
	PowerOff() <-chan kettle.CommandResult
	SetTemperature(degrees int) <-chan kettle.CommandResult
}

// Bridge renders state changes onto broker topics and feeds inbound command
// topics back into the kettle service.
type Bridge struct {
	logger *slog.Logger
	bus    bus.MessageBus
	sink   Sink
	kettle Commander
	state  *device.State

	mu           sync.Mutex
	availability string
}

func NewBridge(logger *slog.Logger, b bus.MessageBus, sink Sink, commander Commander, state *device.State) *Bridge {
	return &Bridge{
		logger:       logger,
		bus:          b,
		sink:         sink,
		kettle:       commander,
		state:        state,
		availability: PayloadOffline,
	}
}

func (br *Bridge) Start(ctx context.Context) {
	go br.run(ctx)
}

// OnBrokerConnect is the sink (re)connect hook: retained discovery configs,
// the last known availability, a snapshot of the mirror, and the command
// subscriptions, which the broker forgets across reconnects.
func (br *Bridge) OnBrokerConnect() {
	if err := br.publishDiscovery(); err != nil {
		br.logger.Warn("discovery publish failed", "error", err)
	}
	if err := br.sink.Publish(TopicAvailability, br.lastAvailability(), true); err != nil {
		br.logger.Warn("availability publish failed", "error", err)
	}
	br.publishSnapshot()
	if err := br.subscribeCommands(); err != nil {
		br.logger.Warn("command subscribe failed", "error", err)
	}
}

func (br *Bridge) run(ctx context.Context) {
	sub := br.bus.Subscribe(connectors.TopicStateChange, connectors.TopicConnStatus)
	defer br.bus.Unsubscribe(sub, connectors.TopicStateChange, connectors.TopicConnStatus)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			switch e := evt.(type) {
			case device.Change:
				br.publishChange(e)
			case connectors.ConnStatus:
				br.publishAvailability(e)
			}
		}
	}
}

// publishChange maps one mirror change onto the topic contract. Fields whose
// vocabulary has no unknown rendering (power, target, scales) are simply not
// published when they reset; the retained offline availability covers them.
func (br *Bridge) publishChange(change device.Change) {
	topic, payload, ok := renderChange(change)
	if !ok {
		return
	}
	if err := br.sink.Publish(topic, payload, false); err != nil {
		br.logger.Warn("state publish failed", "topic", topic, "error", err)
	}
}

func renderChange(change device.Change) (topic, payload string, ok bool) {
	switch change.Field {
	case device.FieldPower:
		if change.New != string(device.PowerOn) && change.New != string(device.PowerOff) {
			return "", "", false
		}
		return TopicSwitchState, change.New, true
	case device.FieldTargetTemp:
		if !isDegrees(change.New) {
			return "", "", false
		}
		return TopicTargetTemp, change.New, true
	case device.FieldCurrentTemp:
		if change.New == "unavailable" {
			return TopicSensorTemp, payloadNoReading, true
		}
		if !isDegrees(change.New) {
			return "", "", false
		}
		return TopicSensorTemp, change.New, true
	case device.FieldTargetScale:
		unit, ok := renderScale(change.New)
		if !ok {
			return "", "", false
		}
		return TopicTargetScale, unit, true
	case device.FieldCurrentScale:
		unit, ok := renderScale(change.New)
		if !ok {
			return "", "", false
		}
		return TopicCurrentScale, unit, true
	default:
		return "", "", false
	}
}

func renderScale(canonical string) (string, bool) {
	switch canonical {
	case string(device.ScaleCelsius):
		return "°C", true
	case string(device.ScaleFahrenheit):
		return "°F", true
	default:
		return "", false
	}
}

func isDegrees(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func (br *Bridge) publishAvailability(status connectors.ConnStatus) {
	var payload string
	switch status.State {
	case connectors.ConnectionStateConnected:
		payload = PayloadOnline
	case connectors.ConnectionStateDisconnected, connectors.ConnectionStateReconnecting:
		payload = PayloadOffline
	default:
		return
	}

	br.mu.Lock()
	br.availability = payload
	br.mu.Unlock()

	if err := br.sink.Publish(TopicAvailability, payload, true); err != nil {
		br.logger.Warn("availability publish failed", "error", err)
	}
}

func (br *Bridge) lastAvailability() string {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.availability
}

// PublishOffline marks the bridge unavailable. The will only covers unclean
// exits, so a clean shutdown publishes the retained offline itself.
func (br *Bridge) PublishOffline() {
	br.mu.Lock()
	br.availability = PayloadOffline
	br.mu.Unlock()

	if !br.sink.Connected() {
		return
	}
	if err := br.sink.Publish(TopicAvailability, PayloadOffline, true); err != nil {
		br.logger.Warn("offline publish failed", "error", err)
	}
}

// publishSnapshot replays the mirror onto the state topics. They are not
// retained, so a broker reconnect would otherwise leave consumers blank
// until the kettle next changes something.
func (br *Bridge) publishSnapshot() {
	snapshot := br.state.Snapshot()

	if snapshot.Power == device.PowerOn || snapshot.Power == device.PowerOff {
		br.publishChange(device.Change{Field: device.FieldPower, New: string(snapshot.Power)})
	}
	if degrees, ok := snapshot.TargetTemp.Known(); ok {
		br.publishChange(device.Change{Field: device.FieldTargetTemp, New: strconv.Itoa(degrees)})
	}
	if snapshot.TargetScale != device.ScaleUnknown {
		br.publishChange(device.Change{Field: device.FieldTargetScale, New: string(snapshot.TargetScale)})
	}
	if snapshot.CurrentTemp.Status != device.TempStatusUnknown {
		br.publishChange(device.Change{Field: device.FieldCurrentTemp, New: snapshot.CurrentTemp.String()})
	}
	if snapshot.CurrentScale != device.ScaleUnknown {
		br.publishChange(device.Change{Field: device.FieldCurrentScale, New: string(snapshot.CurrentScale)})
	}
}

func (br *Bridge) subscribeCommands() error {
	if err := br.sink.Subscribe(TopicSwitchSet, br.handleSwitchCommand); err != nil {
		return err
	}

	return br.sink.Subscribe(TopicTemperatureSet, br.handleTemperatureCommand)
}

func (br *Bridge) handleSwitchCommand(_ string, payload string) {
	command := strings.TrimSpace(payload)

	var resCh <-chan kettle.CommandResult
	switch command {
	case string(device.PowerOn):
		resCh = br.kettle.PowerOn()
	case string(device.PowerOff):
		resCh = br.kettle.PowerOff()
	default:
		br.logger.Warn("unsupported switch payload", "payload", payload)
		return
	}

	// Waiting here would stall the broker client's router.
	go br.ackSwitch(command, resCh)
}

// ackSwitch echoes the accepted command onto the state topic so the panel
// flips immediately instead of waiting for the kettle's next report.
func (br *Bridge) ackSwitch(command string, resCh <-chan kettle.CommandResult) {
	res := <-resCh
	if res.Err != nil {
		br.logger.Warn("switch command failed", "command", res.Command, "error", res.Err)
		return
	}
	if err := br.sink.Publish(TopicSwitchState, command, false); err != nil {
		br.logger.Warn("switch ack publish failed", "error", err)
	}
}

func (br *Bridge) handleTemperatureCommand(_ string, payload string) {
	degrees, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		br.logger.Warn("unsupported temperature payload", "payload", payload)
		return
	}

	go br.awaitTemperature(degrees, br.kettle.SetTemperature(degrees))
}

func (br *Bridge) awaitTemperature(degrees int, resCh <-chan kettle.CommandResult) {
	res := <-resCh
	if res.Err == nil {
		return
	}

	var encErr *protocol.EncodingError
	if errors.As(res.Err, &encErr) {
		br.logger.Warn("temperature rejected", "degrees", degrees, "min", encErr.Min, "max", encErr.Max)
		return
	}
	br.logger.Warn("temperature command failed", "degrees", degrees, "error", res.Err)
}
