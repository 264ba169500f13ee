package link

import (
	"context"
	"sync"
	"time"

	"hydrosense.xyz/hydration-link-service/pkg/common"
)

// FakeTransport is a scripted Transport for tests: it replays a fixed set
// of advertisements, hands out a FakeConnection, and records everything.
type FakeTransport struct {
	mu sync.Mutex

	// Advertisements are replayed into each scan, in order.
	Advertisements []Advertisement

	// HoldScanOpen keeps the scan channel open after replay until ctx is
	// canceled, to exercise cancel-while-scanning paths.
	HoldScanOpen bool

	// ScanErr, if set, is returned by Scan.
	ScanErr error

	// ConnectErr, if set, is returned by Connect.
	ConnectErr error

	// Conn is handed out by Connect. Defaults to a fresh FakeConnection.
	Conn *FakeConnection

	// ConnectedIDs records every id passed to Connect.
	ConnectedIDs []string
}

func NewFakeTransport(adverts ...Advertisement) *FakeTransport {
	return &FakeTransport{
		Advertisements: adverts,
		Conn:           NewFakeConnection(),
	}
}

func (t *FakeTransport) Scan(ctx context.Context, timeout time.Duration) (<-chan Advertisement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ScanErr != nil {
		return nil, t.ScanErr
	}

	out := make(chan Advertisement, len(t.Advertisements))
	adverts := make([]Advertisement, len(t.Advertisements))
	copy(adverts, t.Advertisements)
	hold := t.HoldScanOpen

	go func() {
		defer close(out)
		for _, adv := range adverts {
			select {
			case out <- adv:
			case <-ctx.Done():
				return
			}
		}
		if hold {
			<-ctx.Done()
		}
	}()
	return out, nil
}

func (t *FakeTransport) Connect(ctx context.Context, id string) (Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ConnectedIDs = append(t.ConnectedIDs, id)
	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if t.Conn == nil {
		t.Conn = NewFakeConnection()
	}
	return t.Conn, nil
}

type fakeWrite struct {
	ServiceUUID string
	CharUUID    string
	Data        []byte
}

// FakeConnection is the Connection half of FakeTransport. Tests push
// notifications and trigger unsolicited drops by hand.
type FakeConnection struct {
	mu sync.Mutex

	// SubscribeErr, if set, is returned by Subscribe.
	SubscribeErr error

	// WriteErr, if set, is returned by Write.
	WriteErr error

	// CloseErr, if set, is returned by Close. The stream still closes.
	CloseErr error

	writes       []fakeWrite
	notifCh      chan []byte
	onDisconnect func()
	closed       bool
}

func NewFakeConnection() *FakeConnection {
	return &FakeConnection{
		notifCh: make(chan []byte, 16),
	}
}

func (c *FakeConnection) Subscribe(serviceUUID, charUUID string) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}
	return c.notifCh, nil
}

func (c *FakeConnection) Write(serviceUUID, charUUID string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.writes = append(c.writes, fakeWrite{ServiceUUID: serviceUUID, CharUUID: charUUID, Data: data})
	return nil
}

func (c *FakeConnection) OnUnsolicitedDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

func (c *FakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.notifCh)
	}
	return c.CloseErr
}

// PushNotification feeds one raw packet into the subscription stream.
func (c *FakeConnection) PushNotification(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.notifCh <- data
}

// DropLink simulates an unsolicited transport-level disconnect.
func (c *FakeConnection) DropLink() {
	c.mu.Lock()
	fn := c.onDisconnect
	if !c.closed {
		c.closed = true
		close(c.notifCh)
	}
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Writes returns a snapshot of the recorded writes as command strings.
func (c *FakeConnection) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.Mapper(c.writes, func(w fakeWrite) string { return string(w.Data) })
}

// Closed reports whether Close or DropLink has run.
func (c *FakeConnection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
