package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/telemetry"
	_ "hydrosense.xyz/hydration-link-service/pkg/testing"
)

const testDeviceName = "HydroBottle-01"

func testConfig() Config {
	return Config{
		DeviceName:         testDeviceName,
		ServiceUUID:        "0000fff0-0000-1000-8000-00805f9b34fb",
		CharacteristicUUID: "0000fff1-0000-1000-8000-00805f9b34fb",
		ScanTimeout:        time.Second,
	}
}

func connectedManager(t *testing.T) (*Manager, *FakeTransport, <-chan StateChange) {
	t.Helper()
	common.SetTestLoggerNop()

	transport := NewFakeTransport(
		Advertisement{ID: "aa:bb", Name: "SomeOtherDevice"},
		Advertisement{ID: "cc:dd", Name: testDeviceName},
	)
	m := NewManager(testConfig(), transport, nil)

	changes := make(chan StateChange, 16)
	m.SubscribeStateChanges(func(c StateChange) { changes <- c })

	require.NoError(t, m.Connect(context.Background()))
	require.Equal(t, StateConnected, m.State())
	return m, transport, changes
}

func drainChanges(changes <-chan StateChange) []StateChange {
	var out []StateChange
	for {
		select {
		case c := <-changes:
			out = append(out, c)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

func drainCauses(changes <-chan StateChange) []Cause {
	var causes []Cause
	for _, c := range drainChanges(changes) {
		causes = append(causes, c.Cause)
	}
	return causes
}

func TestConnect_HappyPath(t *testing.T) {
	m, transport, changes := connectedManager(t)
	defer m.Close()

	// the name filter picked the right peripheral
	assert.Equal(t, []string{"cc:dd"}, transport.ConnectedIDs)

	// GET_DATA is issued once on connect
	assert.Equal(t, []string{CmdGetData}, transport.Conn.Writes())

	var states []State
	for i := 0; i < 3; i++ {
		select {
		case c := <-changes:
			states = append(states, c.State)
		case <-time.After(time.Second):
			t.Fatal("missing state change")
		}
	}
	assert.Equal(t, []State{StateScanning, StateConnecting, StateConnected}, states)
}

func TestConnect_DeviceNotFound(t *testing.T) {
	common.SetTestLoggerNop()

	transport := NewFakeTransport(Advertisement{ID: "aa:bb", Name: "NotOurs"})
	m := NewManager(testConfig(), transport, nil)
	changes := make(chan StateChange, 16)
	m.SubscribeStateChanges(func(c StateChange) { changes <- c })

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Equal(t, StateDisconnected, m.State())

	causes := drainCauses(changes)
	assert.Contains(t, causes, CauseScanTimeout)
}

type denyingPermissions struct{}

func (denyingPermissions) Check() error { return errors.New("bluetooth permission missing") }

func TestConnect_PermissionDenied(t *testing.T) {
	common.SetTestLoggerNop()

	transport := NewFakeTransport()
	m := NewManager(testConfig(), transport, denyingPermissions{})

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestConnect_SubscribeFailure(t *testing.T) {
	common.SetTestLoggerNop()

	transport := NewFakeTransport(Advertisement{ID: "cc:dd", Name: testDeviceName})
	transport.Conn.SubscribeErr = errors.New("gatt busy")
	m := NewManager(testConfig(), transport, nil)

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, StateDisconnected, m.State())
	assert.True(t, transport.Conn.Closed())
}

func TestConnect_RejectedWhileBusy(t *testing.T) {
	common.SetTestLoggerNop()

	transport := NewFakeTransport()
	transport.HoldScanOpen = true
	m := NewManager(testConfig(), transport, nil)

	scanning := make(chan struct{})
	m.SubscribeStateChanges(func(c StateChange) {
		if c.State == StateScanning {
			close(scanning)
		}
	})

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()

	select {
	case <-scanning:
	case <-time.After(time.Second):
		t.Fatal("never reached scanning state")
	}

	assert.ErrorIs(t, m.Connect(context.Background()), ErrAlreadyInProgress)

	// cancel the in-flight scan; a requested teardown is a success
	require.NoError(t, m.Disconnect())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("connect did not observe the cancellation")
	}
	assert.Equal(t, StateDisconnected, m.State())
}

// stallingTransport blocks Connect until released and then hands back a
// live connection regardless of ctx, like a stack that cannot abort a
// handshake once started.
type stallingTransport struct {
	*FakeTransport
	release chan struct{}
}

func (t *stallingTransport) Connect(ctx context.Context, id string) (Connection, error) {
	<-t.release
	return t.Conn, nil
}

func TestDisconnect_DuringConnectingDropsLateConnection(t *testing.T) {
	common.SetTestLoggerNop()

	transport := &stallingTransport{
		FakeTransport: NewFakeTransport(Advertisement{ID: "cc:dd", Name: testDeviceName}),
		release:       make(chan struct{}),
	}
	m := NewManager(testConfig(), transport, nil)

	connecting := make(chan struct{})
	changes := make(chan StateChange, 16)
	m.SubscribeStateChanges(func(c StateChange) {
		changes <- c
		if c.State == StateConnecting {
			close(connecting)
		}
	})

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()

	select {
	case <-connecting:
	case <-time.After(time.Second):
		t.Fatal("never reached connecting state")
	}

	// teardown lands while the handshake is still in flight
	require.NoError(t, m.Disconnect())
	assert.Equal(t, StateDisconnected, m.State())

	// the transport finishes the handshake anyway; the manager must not
	// adopt the connection it hands back
	close(transport.release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("connect did not return after the handshake finished")
	}

	assert.Equal(t, StateDisconnected, m.State())
	assert.True(t, transport.Conn.Closed())

	var states []State
	for _, c := range drainChanges(changes) {
		states = append(states, c.State)
	}
	assert.NotContains(t, states, StateConnected)
}

func TestReadings_PublishedInOrder(t *testing.T) {
	m, transport, _ := connectedManager(t)
	defer m.Close()

	readings := make(chan telemetry.Reading, 16)
	m.SubscribeReadings(func(r telemetry.Reading) { readings <- r })

	transport.Conn.PushNotification([]byte("W:80,T:20,S:OK,B:90"))
	transport.Conn.PushNotification([]byte("this is not telemetry"))
	transport.Conn.PushNotification([]byte("W:70,T:20,S:OK,B:90"))

	first := <-readings
	second := <-readings
	assert.Equal(t, 80.0, first.WaterLevelPercent)
	assert.Equal(t, 70.0, second.WaterLevelPercent)

	// the malformed packet was dropped without touching the link
	assert.Equal(t, StateConnected, m.State())
	r := m.LastReading()
	require.NotNil(t, r)
	assert.Equal(t, 70.0, r.WaterLevelPercent)
}

func TestDisconnect_RequestedNeverSurfacesTransportError(t *testing.T) {
	m, transport, changes := connectedManager(t)
	transport.Conn.CloseErr = errors.New("teardown hiccup")

	require.NoError(t, m.Disconnect())
	assert.Equal(t, StateDisconnected, m.State())

	causes := drainCauses(changes)
	assert.Contains(t, causes, CauseRequested)
	assert.NotContains(t, causes, CauseTransportLost)
}

func TestDisconnect_UnsolicitedSurfacesError(t *testing.T) {
	m, transport, changes := connectedManager(t)
	defer m.Close()

	transport.Conn.DropLink()

	deadline := time.After(time.Second)
	for {
		select {
		case c := <-changes:
			if c.Cause == CauseTransportLost {
				assert.ErrorIs(t, c.Err, ErrTransport)
				assert.Equal(t, StateDisconnected, m.State())
				return
			}
		case <-deadline:
			t.Fatal("transport loss was never published")
		}
	}
}

func TestSendCommand(t *testing.T) {
	common.SetTestLoggerNop()

	m := NewManager(testConfig(), NewFakeTransport(), nil)
	assert.ErrorIs(t, m.SendCommand(CmdTest), ErrNotConnected)

	m2, transport, _ := connectedManager(t)
	defer m2.Close()

	require.NoError(t, m2.SendCommand(CmdCalibrate))
	assert.Equal(t, []string{CmdGetData, CmdCalibrate}, transport.Conn.Writes())

	transport.Conn.WriteErr = errors.New("att write failed")
	assert.ErrorIs(t, m2.SendCommand(CmdReset), ErrTransport)
}

func TestObservers_UnsubscribeAndClose(t *testing.T) {
	m, transport, _ := connectedManager(t)

	var got int
	unsub := m.SubscribeReadings(func(telemetry.Reading) { got++ })
	unsub()

	transport.Conn.PushNotification([]byte("W:50"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, got)

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Connect(context.Background()), ErrClosed)
}
