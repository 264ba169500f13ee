package link

import (
	"context"
	"time"
)

// Command vocabulary understood by the bottle firmware. Commands are
// fire-and-forget: the device never correlates a reply, it just keeps
// pushing telemetry notifications.
const (
	CmdGetData   = "GET_DATA"
	CmdTest      = "TEST"
	CmdReset     = "RESET"
	CmdCalibrate = "CALIBRATE"
)

func IsKnownCommand(cmd string) bool {
	switch cmd {
	case CmdGetData, CmdTest, CmdReset, CmdCalibrate:
		return true
	}
	return false
}

// Advertisement is one discovered peripheral during a scan.
type Advertisement struct {
	ID   string
	Name string
	RSSI int
}

// Transport is the BLE layer collaborator. The real implementation lives
// in pkg/link/bluez; tests use FakeTransport.
type Transport interface {
	// Scan streams advertisements until timeout elapses or ctx is
	// canceled, then closes the channel.
	Scan(ctx context.Context, timeout time.Duration) (<-chan Advertisement, error)
	Connect(ctx context.Context, id string) (Connection, error)
}

// Connection is an established peripheral link.
type Connection interface {
	// Subscribe enables notifications on the telemetry characteristic and
	// streams raw packets. The channel closes when the link goes away.
	Subscribe(serviceUUID, charUUID string) (<-chan []byte, error)
	Write(serviceUUID, charUUID string, data []byte) error
	// OnUnsolicitedDisconnect registers a callback fired when the
	// transport drops the link without a local Close.
	OnUnsolicitedDisconnect(fn func())
	Close() error
}

// PermissionChecker gates scanning on the host's radio permissions.
type PermissionChecker interface {
	Check() error
}

// AllowAllPermissions is the default checker for hosts where the process
// already owns the adapter.
type AllowAllPermissions struct{}

func (AllowAllPermissions) Check() error { return nil }
