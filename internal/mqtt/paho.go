package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// PahoSink is the production Sink. The broker keeps a retained offline will
// on the availability topic so consumers see the bridge drop even when the
// process dies without a clean shutdown.
type PahoSink struct {
	logger *slog.Logger
	client paho.Client

	mu        sync.Mutex
	onConnect func()
}

func NewPahoSink(logger *slog.Logger, broker, clientID, username, password string) *PahoSink {
	s := &PahoSink{logger: logger}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(15 * time.Second)
	opts.SetWill(TopicAvailability, PayloadOffline, 0, true)
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info("broker connected", "broker", broker)
		s.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("broker connection lost", "error", err)
	})

	s.client = paho.NewClient(opts)

	return s
}

// SetOnConnect registers the hook invoked on every broker (re)connect,
// before Connect is called. Subscriptions do not survive reconnects, so the
// hook is where the bridge re-establishes them.
func (s *PahoSink) SetOnConnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

func (s *PahoSink) handleConnect() {
	s.mu.Lock()
	fn := s.onConnect
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *PahoSink) Connect() error {
	token := s.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect mqtt broker: %w", err)
	}

	return nil
}

func (s *PahoSink) Close() {
	s.client.Disconnect(250)
	s.logger.Info("broker client closed")
}

func (s *PahoSink) Publish(topic, payload string, retain bool) error {
	token := s.client.Publish(topic, 0, retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

func (s *PahoSink) Subscribe(topic string, handler func(topic, payload string)) error {
	token := s.client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), string(msg.Payload()))
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	return nil
}

func (s *PahoSink) Connected() bool {
	return s.client.IsConnected()
}
