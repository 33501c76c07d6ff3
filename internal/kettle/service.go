// Package kettle supervises the link to the kettle: it keeps the transport
// connected, decodes inbound traffic into state changes, and serializes
// outbound control commands.
package kettle

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kettlebridge/internal/bus"
	"kettlebridge/internal/connectors"
	"kettlebridge/internal/device"
	"kettlebridge/internal/protocol"
	"kettlebridge/internal/transport"
)

const (
	commandPowerOn        = "power_on"
	commandPowerOff       = "power_off"
	commandSetTemperature = "set_temperature"
)

type CommandResult struct {
	Command string
	Err     error
}

type commandRequest struct {
	kind    string
	degrees int
	result  chan CommandResult
}

type Service struct {
	logger    *slog.Logger
	transport transport.Transport
	interp    *protocol.Interpreter
	state     *device.State
	bus       bus.MessageBus
	outbox    chan commandRequest
}

func NewService(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, state *device.State) *Service {
	return &Service{
		logger:    logger,
		transport: tr,
		interp:    protocol.NewInterpreter(logger),
		state:     state,
		bus:       b,
		outbox:    make(chan commandRequest, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.runOutbox(ctx)
	go s.runConnector(ctx)
}

func (s *Service) State() *device.State {
	return s.state
}

func (s *Service) PowerOn() <-chan CommandResult {
	return s.submit(commandRequest{kind: commandPowerOn})
}

func (s *Service) PowerOff() <-chan CommandResult {
	return s.submit(commandRequest{kind: commandPowerOff})
}

func (s *Service) SetTemperature(degrees int) <-chan CommandResult {
	return s.submit(commandRequest{kind: commandSetTemperature, degrees: degrees})
}

func (s *Service) submit(req commandRequest) <-chan CommandResult {
	resCh := make(chan CommandResult, 1)
	req.result = resCh
	s.outbox <- req

	return resCh
}

func (s *Service) runConnector(ctx context.Context) {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		s.publishConnStatus(connectors.ConnectionStateConnecting, nil)
		if err := s.transport.Connect(ctx); err != nil {
			s.publishConnStatus(connectors.ConnectionStateReconnecting, err)
			s.logger.Error("transport connect failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			if backoff < 15*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		s.publishConnStatus(connectors.ConnectionStateConnected, nil)
		if err := s.sendInit(ctx); err != nil {
			s.logger.Warn("init frame send failed", "error", err)
		}

		err := s.runReader(ctx)
		_ = s.transport.Close()
		s.logger.Warn("reader stopped, resetting mirror", "error", err)
		s.publishChanges(s.state.Reset())
		s.publishConnStatus(connectors.ConnectionStateReconnecting, err)

		if !sleepWithContext(ctx, backoff) {
			return
		}
		if backoff < 15*time.Second {
			backoff *= 2
		}
	}
}

func (s *Service) runReader(ctx context.Context) error {
	decoder := protocol.NewFrameDecoder(s.logger)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// The kettle reports roughly once a second while the link is up, so
		// a long silence means the link is gone even when the BLE stack
		// never surfaces an error.
		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		chunk, err := s.transport.ReadChunk(readCtx)
		cancel()
		if err != nil {
			return err
		}

		s.bus.Publish(connectors.TopicRawFrameIn, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(chunk)), Len: len(chunk)})
		msg, ok := decoder.Push(chunk)
		if !ok {
			continue
		}
		update, ok := s.interp.Interpret(msg)
		if !ok {
			continue
		}
		s.publishChanges(s.state.Apply(update))
	}
}

func (s *Service) runOutbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.outbox:
			res := s.handleCommand(ctx, req)
			s.publishCommandResult(res)
			req.result <- res
			close(req.result)
		}
	}
}

func (s *Service) handleCommand(ctx context.Context, req commandRequest) CommandResult {
	frame, err := s.encodeCommand(req)
	if err != nil {
		return CommandResult{Command: req.kind, Err: err}
	}

	writeCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	err = s.transport.Write(writeCtx, frame)
	cancel()
	if err != nil {
		return CommandResult{Command: req.kind, Err: fmt.Errorf("send command frame: %w", err)}
	}

	s.bus.Publish(connectors.TopicRawFrameOut, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(frame)), Len: len(frame)})

	return CommandResult{Command: req.kind}
}

func (s *Service) encodeCommand(req commandRequest) ([]byte, error) {
	switch req.kind {
	case commandPowerOn:
		return protocol.EncodePowerOn(), nil
	case commandPowerOff:
		return protocol.EncodePowerOff(), nil
	case commandSetTemperature:
		// Bounds depend on the scale the kettle currently displays.
		return protocol.EncodeSetTemperature(req.degrees, s.state.Snapshot().TargetScale)
	default:
		return nil, fmt.Errorf("unknown command: %q", req.kind)
	}
}

func (s *Service) sendInit(ctx context.Context) error {
	frame := protocol.EncodeInit()
	writeCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := s.transport.Write(writeCtx, frame); err != nil {
		return err
	}
	s.bus.Publish(connectors.TopicRawFrameOut, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(frame)), Len: len(frame)})

	return nil
}

func (s *Service) publishChanges(changes []device.Change) {
	for _, change := range changes {
		s.bus.Publish(connectors.TopicStateChange, change)
	}
}

func (s *Service) publishCommandResult(res CommandResult) {
	event := connectors.CommandResult{Command: res.Command, At: time.Now()}
	if res.Err != nil {
		event.Err = res.Err.Error()
	}
	s.bus.Publish(connectors.TopicCommandResult, event)
}

func (s *Service) publishConnStatus(state connectors.ConnectionState, err error) {
	status := connectors.ConnStatus{
		State:         state,
		TransportName: s.transport.Name(),
		Target:        s.statusTarget(),
		Timestamp:     time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(connectors.TopicConnStatus, status)
}

func (s *Service) statusTarget() string {
	if resolver, ok := s.transport.(transport.StatusTargetResolver); ok {
		return resolver.StatusTarget()
	}

	return ""
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
