package transport

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"kettlebridge/internal/bluetoothutil"
)

const (
	defaultBluetoothChunkQueueSize = 128
	defaultBluetoothDiscoverWait   = 12 * time.Second
	defaultBluetoothSubscribeWait  = 8 * time.Second
)

type bluetoothConnState struct {
	device bluetooth.Device
	serial bluetooth.DeviceCharacteristic

	chunkCh chan []byte
	closed  chan struct{}

	closeOnce sync.Once
}

type BluetoothTransport struct {
	address   string
	adapterID string

	mu      sync.RWMutex
	conn    *bluetoothConnState
	writeMu sync.Mutex
}

func NewBluetoothTransport(address, adapterID string) *BluetoothTransport {
	return &BluetoothTransport{
		address:   strings.TrimSpace(address),
		adapterID: strings.TrimSpace(adapterID),
	}
}

func (t *BluetoothTransport) Name() string {
	return "bluetooth"
}

func (t *BluetoothTransport) SetConfig(address, adapterID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.address = strings.TrimSpace(address)
	t.adapterID = strings.TrimSpace(adapterID)
}

func (t *BluetoothTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.address
}

func (t *BluetoothTransport) StatusTarget() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.address
}

func (t *BluetoothTransport) AdapterID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.adapterID
}

func (t *BluetoothTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("bluetooth", "address", t.address, "adapter", t.adapterID)

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")
		return nil
	}
	if err := ctx.Err(); err != nil {
		logger.Debug("connect canceled", "error", err)
		return err
	}
	if strings.TrimSpace(t.address) == "" {
		logger.Warn("connect failed: address is empty")
		return errors.New("bluetooth address is empty")
	}

	addr, err := parseBluetoothAddress(t.address)
	if err != nil {
		logger.Warn("connect failed: invalid address", "error", err)
		return err
	}

	adapter := bluetoothutil.ResolveAdapter(t.adapterID)
	logger.Info("connecting")
	logger.Debug("enabling adapter")
	if err := bluetoothutil.EnableAdapter(adapter); err != nil {
		logger.Warn("enable adapter failed", "error", err)
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	logger.Debug("adapter enabled")
	if err := ctx.Err(); err != nil {
		logger.Debug("connect canceled after adapter enable", "error", err)
		return err
	}

	logger.Debug("connecting device")
	device, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil && shouldRetryBluetoothConnectWithDiscovery(err) {
		logger.Info("direct connect failed, trying discovery fallback", "error", err)
		if discoverErr := discoverBluetoothDevice(ctx, adapter, addr); discoverErr != nil {
			logger.Warn("discovery fallback failed", "error", discoverErr)
			return fmt.Errorf("connect bluetooth device %q: %w", t.address, errors.Join(err, fmt.Errorf("discovery failed: %w", discoverErr)))
		}
		logger.Debug("retrying device connect after discovery")
		device, err = adapter.Connect(addr, bluetooth.ConnectionParams{})
	}
	if err != nil {
		logger.Warn("connect device failed", "error", err)
		return fmt.Errorf("connect bluetooth device %q: %w", t.address, err)
	}
	logger.Debug("device connected")

	logger.Debug("discovering serial service")
	services, err := device.DiscoverServices([]bluetooth.UUID{bluetoothutil.KettleServiceUUID()})
	if err != nil {
		_ = device.Disconnect()
		logger.Warn("discover service failed", "error", err)
		return fmt.Errorf("discover serial service: %w", err)
	}
	if len(services) == 0 {
		_ = device.Disconnect()
		logger.Warn("serial service is not available")
		return errors.New("kettle serial BLE service is not available")
	}
	logger.Debug("serial service discovered", "count", len(services))

	logger.Debug("discovering serial characteristic")
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{
		bluetoothutil.KettleSerialUUID(),
	})
	if err != nil {
		_ = device.Disconnect()
		logger.Warn("discover characteristic failed", "error", err)
		return fmt.Errorf("discover serial characteristic: %w", err)
	}
	if len(chars) != 1 {
		_ = device.Disconnect()
		logger.Warn("unexpected characteristic count", "count", len(chars))
		return fmt.Errorf("unexpected characteristic count: %d", len(chars))
	}
	logger.Debug("serial characteristic discovered")

	state := &bluetoothConnState{
		device:  device,
		serial:  chars[0],
		chunkCh: make(chan []byte, defaultBluetoothChunkQueueSize),
		closed:  make(chan struct{}),
	}

	// The kettle pushes status frames through notifications on the same
	// characteristic commands are written to.
	logger.Debug("subscribing to notifications")
	if err := enableBluetoothNotificationsWithTimeout(ctx, device, state.serial, func(buf []byte) {
		t.enqueueChunk(state, buf)
	}, defaultBluetoothSubscribeWait); err != nil {
		_ = device.Disconnect()
		logger.Warn("subscribe to notifications failed", "error", err)
		return fmt.Errorf("subscribe to serial notifications: %w", err)
	}
	logger.Debug("subscribed to notifications")

	if err := ctx.Err(); err != nil {
		state.markClosed()
		_ = state.serial.EnableNotifications(nil)
		_ = device.Disconnect()
		logger.Debug("connect canceled after setup", "error", err)
		return err
	}

	t.conn = state
	logger.Info("connected")
	return nil
}

func (t *BluetoothTransport) Close() error {
	t.mu.Lock()
	logger := transportLogger("bluetooth", "address", t.address, "adapter", t.adapterID)
	state := t.conn
	t.conn = nil
	t.mu.Unlock()
	if state == nil {
		logger.Debug("close skipped: not connected")
		return nil
	}

	logger.Info("closing connection")
	state.markClosed()

	var closeErr error
	if err := state.serial.EnableNotifications(nil); err != nil {
		closeErr = errors.Join(closeErr, fmt.Errorf("disable serial notifications: %w", err))
		logger.Warn("disable notifications failed", "error", err)
	}
	if err := state.device.Disconnect(); err != nil {
		closeErr = errors.Join(closeErr, fmt.Errorf("disconnect bluetooth device: %w", err))
		logger.Warn("disconnect failed", "error", err)
	}

	if closeErr != nil {
		return closeErr
	}
	logger.Info("closed")

	return nil
}

func (t *BluetoothTransport) ReadChunk(ctx context.Context) ([]byte, error) {
	logger := transportLogger("bluetooth")
	state, err := t.currentState()
	if err != nil {
		logger.Debug("read chunk failed: not connected", "error", err)
		return nil, err
	}

	select {
	case <-ctx.Done():
		logger.Debug("read chunk canceled", "error", ctx.Err())
		return nil, ctx.Err()
	case <-state.closed:
		logger.Debug("read chunk failed: transport closed")
		return nil, errors.New("transport is closed")
	case chunk := <-state.chunkCh:
		logger.Debug("read chunk", "len", len(chunk))
		return chunk, nil
	}
}

func (t *BluetoothTransport) Write(ctx context.Context, frame []byte) error {
	logger := transportLogger("bluetooth")
	if err := ctx.Err(); err != nil {
		logger.Debug("write canceled", "error", err)
		return err
	}
	if len(frame) == 0 {
		logger.Warn("write failed: frame is empty")
		return errors.New("frame is empty")
	}

	state, err := t.currentState()
	if err != nil {
		logger.Debug("write failed: not connected", "error", err)
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		logger.Debug("write canceled", "error", err)
		return err
	}
	select {
	case <-state.closed:
		logger.Debug("write failed: transport closed")
		return errors.New("transport is closed")
	default:
	}

	written, err := state.serial.WriteWithoutResponse(frame)
	if err != nil {
		logger.Warn("write failed", "frame_len", len(frame), "error", err)
		return fmt.Errorf("write to serial characteristic: %w", err)
	}
	if written != len(frame) {
		logger.Warn("write failed: short write", "frame_len", len(frame), "written", written)
		return fmt.Errorf("short write to serial characteristic: wrote %d of %d", written, len(frame))
	}
	logger.Debug("write", "frame_len", len(frame))

	return nil
}

func (t *BluetoothTransport) currentState() (*bluetoothConnState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn == nil {
		return nil, errors.New("transport is not connected")
	}
	return t.conn, nil
}

func (t *BluetoothTransport) enqueueChunk(state *bluetoothConnState, payload []byte) {
	logger := transportLogger("bluetooth")
	chunk := append([]byte(nil), payload...)

	select {
	case <-state.closed:
		return
	default:
	}

	select {
	case state.chunkCh <- chunk:
	default:
		logger.Warn("chunk queue full, dropping oldest chunk", "capacity", cap(state.chunkCh), "dropped_len", len(chunk))
		select {
		case <-state.chunkCh:
		default:
		}
		select {
		case state.chunkCh <- chunk:
		default:
		}
	}
}

func parseBluetoothAddress(raw string) (bluetooth.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return bluetooth.Address{}, errors.New("bluetooth address is empty")
	}

	mac, err := bluetooth.ParseMAC(strings.ToUpper(trimmed))
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("invalid bluetooth address %q: %w", trimmed, err)
	}

	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}

func shouldRetryBluetoothConnectWithDiscovery(err error) bool {
	if err == nil || runtime.GOOS != "linux" {
		return false
	}
	msg := strings.ToLower(err.Error())
	if bluetoothutil.IsDBusErrorName(err, "org.freedesktop.DBus.Error.UnknownMethod") {
		return strings.Contains(msg, "org.freedesktop.dbus.properties") &&
			strings.Contains(msg, "method \"get\"")
	}

	return strings.Contains(msg, "org.freedesktop.dbus.properties") &&
		strings.Contains(msg, "method \"get\"") &&
		strings.Contains(msg, "doesn't exist")
}

func discoverBluetoothDevice(ctx context.Context, adapter *bluetooth.Adapter, target bluetooth.Address) error {
	logger := transportLogger("bluetooth", "target", target.String())
	logger.Info("starting device discovery fallback")
	if err := bluetoothutil.StopScan(adapter); err != nil {
		logger.Warn("failed to reset scan state before discovery", "error", err)
		return fmt.Errorf("reset bluetooth scan state: %w", err)
	}

	scanCtx := ctx
	if _, hasDeadline := scanCtx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(scanCtx, defaultBluetoothDiscoverWait)
		defer cancel()
	}

	foundCh := make(chan struct{}, 1)
	scanErrCh := make(chan error, 1)
	go func() {
		scanErrCh <- runBluetoothScan(adapter, func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.Address.MAC != target.MAC {
				return
			}
			select {
			case foundCh <- struct{}{}:
			default:
			}
			_ = adapter.StopScan()
		})
	}()

	found := false
	select {
	case <-foundCh:
		found = true
		logger.Info("target device discovered")
	case <-scanCtx.Done():
		logger.Warn("device discovery timed out or canceled", "error", scanCtx.Err())
		_ = bluetoothutil.StopScan(adapter)
	}

	scanErr := <-scanErrCh
	if scanErr = bluetoothutil.NormalizeScanError(scanErr); scanErr != nil {
		logger.Warn("device discovery scan failed", "error", scanErr)
		return fmt.Errorf("scan bluetooth devices: %w", scanErr)
	}

	if !found {
		logger.Warn("target device not discovered")
		return fmt.Errorf("device %q was not discovered; pair it in OS Bluetooth settings and keep it nearby", target.String())
	}

	logger.Info("device discovery completed")
	return nil
}

// runBluetoothScan retries once when a stale scan from a previous run is
// still registered with BlueZ.
func runBluetoothScan(adapter *bluetooth.Adapter, callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		err := adapter.Scan(callback)
		if err == nil {
			return nil
		}
		lastErr = err
		if !bluetoothutil.IsScanAlreadyInProgressError(err) {
			return err
		}
		if stopErr := bluetoothutil.StopScan(adapter); stopErr != nil {
			return errors.Join(err, fmt.Errorf("stop stale bluetooth scan: %w", stopErr))
		}
	}

	return lastErr
}

func (s *bluetoothConnState) markClosed() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func enableBluetoothNotificationsWithTimeout(
	ctx context.Context,
	device bluetooth.Device,
	char bluetooth.DeviceCharacteristic,
	callback func([]byte),
	wait time.Duration,
) error {
	if wait <= 0 {
		wait = defaultBluetoothSubscribeWait
	}

	done := make(chan error, 1)
	go func() {
		done <- char.EnableNotifications(callback)
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = device.Disconnect()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	case <-timer.C:
		_ = device.Disconnect()
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("timed out after %s (abort returned: %w)", wait, err)
			}
		case <-time.After(2 * time.Second):
		}
		return fmt.Errorf("timed out after %s", wait)
	}
}
