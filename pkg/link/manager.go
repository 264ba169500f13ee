// Package link owns the wireless connection lifecycle for the hydration
// bottle: scan, connect, subscribe, monitor, disconnect. It publishes
// decoded readings and state changes to registered observers and
// serializes all link operations behind one manager instance.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/telemetry"
)

type State int

const (
	StateDisconnected State = iota
	StateScanning
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Cause explains why a state change happened. Telling CauseRequested apart
// from CauseTransportLost is what lets an intentional disconnect stay
// error-free while an unsolicited drop surfaces as an error.
type Cause int

const (
	CauseNone Cause = iota
	CauseRequested
	CauseTransportLost
	CauseScanTimeout
	CauseConnectFailed
	CausePermissionDenied
)

func (c Cause) String() string {
	switch c {
	case CauseRequested:
		return "requested"
	case CauseTransportLost:
		return "transport_lost"
	case CauseScanTimeout:
		return "scan_timeout"
	case CauseConnectFailed:
		return "connect_failed"
	case CausePermissionDenied:
		return "permission_denied"
	default:
		return "none"
	}
}

// StateChange is the observation published on every transition.
type StateChange struct {
	State          State
	DeviceName     string
	Cause          Cause
	Err            error
	ReadingsSeen   uint64
	DecodeFailures uint64
}

var (
	ErrPermissionDenied  = errors.New("link: bluetooth permission denied")
	ErrDeviceNotFound    = errors.New("link: device not found before scan timeout")
	ErrConnectionFailed  = errors.New("link: connection failed")
	ErrNotConnected      = errors.New("link: not connected")
	ErrTransport         = errors.New("link: transport error")
	ErrAlreadyInProgress = errors.New("link: connect already in progress")
	ErrClosed            = errors.New("link: manager is closed")
)

const DefaultScanTimeout = 15 * time.Second

type Config struct {
	DeviceName         string
	ServiceUUID        string
	CharacteristicUUID string
	ScanTimeout        time.Duration
	PayloadFormat      telemetry.Format
}

// Manager is the single logical actor for one device session. Construct
// one per active user session and tear it down with Close; nothing here is
// a process-wide singleton.
type Manager struct {
	cfg         Config
	transport   Transport
	permissions PermissionChecker
	logger      *zap.Logger

	mu                  sync.Mutex
	state               State
	conn                Connection
	cancelSession       context.CancelFunc
	disconnectRequested bool
	closed              bool
	readingsSeen        uint64
	decodeFailures      uint64
	lastReading         *telemetry.Reading

	stateObservers   []stateObserver
	readingObservers []readingObserver
	nextObserverID   int
}

// Observers are kept as ordered lists so multiple consumers (UI, logging,
// persistence) can subscribe without overwriting each other, and fan-out
// preserves arrival order.
type stateObserver struct {
	id int
	fn func(StateChange)
}

type readingObserver struct {
	id int
	fn func(telemetry.Reading)
}

func NewManager(cfg Config, transport Transport, permissions PermissionChecker) *Manager {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if permissions == nil {
		permissions = AllowAllPermissions{}
	}
	return &Manager{
		cfg:         cfg,
		transport:   transport,
		permissions: permissions,
		logger:      common.GetLoggerWith(common.LoggerNameLinkManager),
		state:       StateDisconnected,
	}
}

// SubscribeStateChanges registers a state observer and returns its
// deregistration func. Observers are invoked in arrival order, outside the
// manager lock.
func (m *Manager) SubscribeStateChanges(fn func(StateChange)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextObserverID
	m.nextObserverID++
	m.stateObservers = append(m.stateObservers, stateObserver{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.stateObservers {
			if o.id == id {
				m.stateObservers = append(m.stateObservers[:i], m.stateObservers[i+1:]...)
				return
			}
		}
	}
}

// SubscribeReadings registers a reading observer and returns its
// deregistration func.
func (m *Manager) SubscribeReadings(fn func(telemetry.Reading)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextObserverID
	m.nextObserverID++
	m.readingObservers = append(m.readingObservers, readingObserver{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.readingObservers {
			if o.id == id {
				m.readingObservers = append(m.readingObservers[:i], m.readingObservers[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastReading returns the most recently decoded reading for this session,
// or nil if none arrived yet.
func (m *Manager) LastReading() *telemetry.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastReading == nil {
		return nil
	}
	r := *m.lastReading
	return &r
}

// Counters reports how many packets decoded and failed this session.
func (m *Manager) Counters() (readingsSeen, decodeFailures uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readingsSeen, m.decodeFailures
}

// Connect runs the full scan -> connect -> subscribe sequence and blocks
// until the link is up or the attempt failed. A concurrent Connect while
// the manager is not Disconnected is rejected, not queued.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyInProgress
	}

	if err := m.permissions.Check(); err != nil {
		m.mu.Unlock()
		m.logger.Warn("Bluetooth permission check failed", zap.Error(err))
		m.publishState(StateDisconnected, CausePermissionDenied, err)
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	m.cancelSession = cancel
	m.disconnectRequested = false
	m.readingsSeen = 0
	m.decodeFailures = 0
	m.lastReading = nil
	m.state = StateScanning
	m.mu.Unlock()

	m.publishState(StateScanning, CauseNone, nil)
	m.logger.Info("Scanning for device", zap.String("device_name", m.cfg.DeviceName))

	adv, err := m.scanForDevice(sessionCtx)
	if err != nil {
		if m.wasDisconnectRequested() {
			m.transitionToDisconnected(CauseRequested, nil)
			return nil
		}
		cause := CauseScanTimeout
		if !errors.Is(err, ErrDeviceNotFound) {
			cause = CauseConnectFailed
		}
		m.transitionToDisconnected(cause, err)
		return err
	}

	// Disconnect may have landed while the scan was running; its teardown
	// already published Disconnected, so the attempt just stops here.
	if !m.commitState(StateConnecting) {
		return nil
	}
	m.publishState(StateConnecting, CauseNone, nil)
	m.logger.Info("Device found, connecting", zap.String("id", adv.ID))

	conn, err := m.transport.Connect(sessionCtx, adv.ID)
	if err != nil {
		if m.wasDisconnectRequested() {
			m.transitionToDisconnected(CauseRequested, nil)
			return nil
		}
		err = fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		m.transitionToDisconnected(CauseConnectFailed, err)
		return err
	}

	// Transports that cannot abort a handshake mid-flight can hand back a
	// live connection after Disconnect already ran. Drop it instead of
	// adopting it.
	if m.wasDisconnectRequested() {
		_ = conn.Close()
		return nil
	}

	notifications, err := conn.Subscribe(m.cfg.ServiceUUID, m.cfg.CharacteristicUUID)
	if err != nil {
		_ = conn.Close()
		if m.wasDisconnectRequested() {
			m.transitionToDisconnected(CauseRequested, nil)
			return nil
		}
		err = fmt.Errorf("%w: subscribe: %v", ErrConnectionFailed, err)
		m.transitionToDisconnected(CauseConnectFailed, err)
		return err
	}

	conn.OnUnsolicitedDisconnect(func() {
		m.transitionToDisconnected(CauseTransportLost, ErrTransport)
	})

	m.mu.Lock()
	if m.disconnectRequested || m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()
	m.publishState(StateConnected, CauseNone, nil)
	m.logger.Info("Connected", zap.String("device_name", m.cfg.DeviceName))

	go m.readLoop(notifications)

	// Prime the first reading. Best effort: the device pushes on its own
	// cadence anyway.
	if err := m.SendCommand(CmdGetData); err != nil {
		m.logger.Warn("Initial GET_DATA failed", zap.Error(err))
	}

	return nil
}

func (m *Manager) scanForDevice(ctx context.Context) (Advertisement, error) {
	adverts, err := m.transport.Scan(ctx, m.cfg.ScanTimeout)
	if err != nil {
		return Advertisement{}, fmt.Errorf("%w: scan: %v", ErrConnectionFailed, err)
	}
	for adv := range adverts {
		if adv.Name == m.cfg.DeviceName {
			return adv, nil
		}
	}
	if ctx.Err() != nil {
		return Advertisement{}, ctx.Err()
	}
	return Advertisement{}, ErrDeviceNotFound
}

func (m *Manager) readLoop(notifications <-chan []byte) {
	for data := range notifications {
		reading, err := telemetry.Decode(data, m.cfg.PayloadFormat, time.Now())
		if err != nil {
			// Per-packet decode failures never tear down the link.
			m.mu.Lock()
			m.decodeFailures++
			m.mu.Unlock()
			m.logger.Warn("Dropping undecodable packet",
				zap.String(common.LoggerFieldCategory, common.LoggerCategoryCodec),
				zap.Error(err))
			continue
		}

		m.mu.Lock()
		m.readingsSeen++
		r := reading
		m.lastReading = &r
		observers := make([]func(telemetry.Reading), 0, len(m.readingObservers))
		for _, o := range m.readingObservers {
			observers = append(observers, o.fn)
		}
		m.mu.Unlock()

		for _, fn := range observers {
			fn(reading)
		}
	}

	// The notification stream is gone. Only treat that as an error when
	// nobody asked for the teardown; a requested disconnect closes this
	// stream as a matter of course.
	if !m.wasDisconnectRequested() {
		m.transitionToDisconnected(CauseTransportLost, ErrTransport)
	}
}

// Disconnect tears the link down on behalf of the caller. It is always a
// success from the caller's point of view, whatever the transport does
// during teardown.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}

	m.disconnectRequested = true
	if m.cancelSession != nil {
		m.cancelSession()
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			// Teardown noise from a requested disconnect is suppressed.
			m.logger.Debug("Ignoring close error during requested disconnect", zap.Error(err))
		}
	}

	m.publishState(StateDisconnected, CauseRequested, nil)
	m.logger.Info("Disconnected on request")
	return nil
}

// SendCommand writes one opaque command string to the command
// characteristic.
func (m *Manager) SendCommand(command string) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(m.cfg.ServiceUUID, m.cfg.CharacteristicUUID, []byte(command)); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrTransport, command, err)
	}
	m.logger.Debug("Command sent", zap.String("command", command))
	return nil
}

// Close tears down the session and deregisters every observer. No
// callbacks fire after Close returns.
func (m *Manager) Close() error {
	err := m.Disconnect()

	m.mu.Lock()
	m.closed = true
	m.stateObservers = nil
	m.readingObservers = nil
	m.mu.Unlock()

	return err
}

// commitState advances the session state only while the session is still
// wanted. It refuses once Disconnect or Close landed, so a late transport
// success cannot resurrect a torn-down session.
func (m *Manager) commitState(s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disconnectRequested || m.closed {
		return false
	}
	m.state = s
	return true
}

func (m *Manager) wasDisconnectRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectRequested
}

// transitionToDisconnected is idempotent: the unsolicited-disconnect
// callback and the closing notification stream can both report the same
// loss.
func (m *Manager) transitionToDisconnected(cause Cause, err error) {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	if cause == CauseTransportLost {
		m.logger.Warn("Link lost", zap.Error(err))
	}
	m.publishState(StateDisconnected, cause, err)
}

func (m *Manager) publishState(s State, cause Cause, err error) {
	m.mu.Lock()
	change := StateChange{
		State:          s,
		DeviceName:     m.cfg.DeviceName,
		Cause:          cause,
		Err:            err,
		ReadingsSeen:   m.readingsSeen,
		DecodeFailures: m.decodeFailures,
	}
	observers := make([]func(StateChange), 0, len(m.stateObservers))
	for _, o := range m.stateObservers {
		observers = append(observers, o.fn)
	}
	m.mu.Unlock()

	for _, fn := range observers {
		fn(change)
	}
}
