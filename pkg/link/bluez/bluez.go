// Package bluez implements link.Transport on top of the BlueZ D-Bus API.
// It is only useful on Linux hosts with a BlueZ stack; tests run against
// link.FakeTransport instead.
package bluez

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/link"
)

const (
	bluezBusName       = "org.bluez"
	adapterInterface   = "org.bluez.Adapter1"
	deviceInterface    = "org.bluez.Device1"
	gattCharInterface  = "org.bluez.GattCharacteristic1"
	propsInterface     = "org.freedesktop.DBus.Properties"
	propsChangedMember = "org.freedesktop.DBus.Properties.PropertiesChanged"

	discoveryPollInterval = time.Second
	servicesResolvedWait  = 10 * time.Second
)

type Transport struct {
	conn        *dbus.Conn
	adapterPath dbus.ObjectPath
	logger      *zap.Logger
}

// NewTransport connects to the system bus and picks the first powered
// Bluetooth adapter.
func NewTransport() (*Transport, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system D-Bus: %w", err)
	}

	t := &Transport{
		conn:   conn,
		logger: common.GetLoggerWith(common.LoggerNameLinkManager, zap.String(common.LoggerFieldCategory, common.LoggerCategoryTransport)),
	}

	objects, err := t.managedObjects()
	if err != nil {
		return nil, err
	}
	for path, interfaces := range objects {
		if _, ok := interfaces[adapterInterface]; ok {
			t.adapterPath = path
			break
		}
	}
	if t.adapterPath == "" {
		return nil, fmt.Errorf("no bluetooth adapter found")
	}

	t.logger.Info("Using adapter", zap.String("path", string(t.adapterPath)))
	return t, nil
}

func (t *Transport) managedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	obj := t.conn.Object(bluezBusName, "/")
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	return objects, nil
}

// Scan starts LE discovery and polls the object tree for devices under the
// adapter, emitting each newly seen peripheral once.
func (t *Transport) Scan(ctx context.Context, timeout time.Duration) (<-chan link.Advertisement, error) {
	adapter := t.conn.Object(bluezBusName, t.adapterPath)

	filter := map[string]interface{}{
		"Transport":     "le",
		"DuplicateData": false,
	}
	if err := adapter.Call(adapterInterface+".SetDiscoveryFilter", 0, filter).Err; err != nil {
		// Some adapters reject filters; discovery still works without one.
		t.logger.Warn("SetDiscoveryFilter failed", zap.Error(err))
	}

	if err := adapter.Call(adapterInterface+".StartDiscovery", 0).Err; err != nil {
		return nil, fmt.Errorf("start discovery: %w", err)
	}

	out := make(chan link.Advertisement, 16)
	go func() {
		defer close(out)
		defer func() {
			if err := adapter.Call(adapterInterface+".StopDiscovery", 0).Err; err != nil {
				t.logger.Warn("StopDiscovery failed", zap.Error(err))
			}
		}()

		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		ticker := time.NewTicker(discoveryPollInterval)
		defer ticker.Stop()

		seen := make(map[dbus.ObjectPath]bool)
		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				return
			case <-ticker.C:
				objects, err := t.managedObjects()
				if err != nil {
					t.logger.Warn("Polling managed objects failed", zap.Error(err))
					continue
				}
				for path, interfaces := range objects {
					if seen[path] || !strings.HasPrefix(string(path), string(t.adapterPath)+"/dev_") {
						continue
					}
					device, ok := interfaces[deviceInterface]
					if !ok {
						continue
					}
					seen[path] = true

					adv := link.Advertisement{ID: string(path)}
					if v, ok := device["Name"]; ok {
						adv.Name, _ = v.Value().(string)
					} else if v, ok := device["Alias"]; ok {
						adv.Name, _ = v.Value().(string)
					}
					if v, ok := device["RSSI"]; ok {
						if rssi, ok := v.Value().(int16); ok {
							adv.RSSI = int(rssi)
						}
					}

					select {
					case out <- adv:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Connect establishes the GATT connection and waits for service discovery
// to finish.
func (t *Transport) Connect(ctx context.Context, id string) (link.Connection, error) {
	devicePath := dbus.ObjectPath(id)
	device := t.conn.Object(bluezBusName, devicePath)

	if err := device.Call(deviceInterface+".Connect", 0).Err; err != nil {
		return nil, fmt.Errorf("device connect: %w", err)
	}

	// GATT children only appear once ServicesResolved flips true.
	waitUntil := time.Now().Add(servicesResolvedWait)
	for {
		var resolved bool
		if err := device.Call(propsInterface+".Get", 0, deviceInterface, "ServicesResolved").Store(&resolved); err == nil && resolved {
			break
		}
		if time.Now().After(waitUntil) {
			_ = device.Call(deviceInterface+".Disconnect", 0).Err
			return nil, fmt.Errorf("services not resolved within %v", servicesResolvedWait)
		}
		select {
		case <-ctx.Done():
			_ = device.Call(deviceInterface+".Disconnect", 0).Err
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	return &connection{
		transport:  t,
		devicePath: devicePath,
	}, nil
}

type connection struct {
	transport  *Transport
	devicePath dbus.ObjectPath

	mu           sync.Mutex
	charPath     dbus.ObjectPath
	sigChan      chan *dbus.Signal
	matchRules   []string
	onDisconnect func()
	closed       bool
}

func (c *connection) findCharacteristic(charUUID string) (dbus.ObjectPath, error) {
	objects, err := c.transport.managedObjects()
	if err != nil {
		return "", err
	}
	want := strings.ToLower(charUUID)
	for path, interfaces := range objects {
		if !strings.HasPrefix(string(path), string(c.devicePath)) {
			continue
		}
		char, ok := interfaces[gattCharInterface]
		if !ok {
			continue
		}
		if v, ok := char["UUID"]; ok {
			if uuid, _ := v.Value().(string); strings.ToLower(uuid) == want {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("characteristic %s not found under %s", charUUID, c.devicePath)
}

func (c *connection) addMatch(rule string) error {
	if err := c.transport.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return err
	}
	c.matchRules = append(c.matchRules, rule)
	return nil
}

func (c *connection) Subscribe(serviceUUID, charUUID string) (<-chan []byte, error) {
	charPath, err := c.findCharacteristic(charUUID)
	if err != nil {
		return nil, err
	}

	charObj := c.transport.conn.Object(bluezBusName, charPath)
	if err := charObj.Call(gattCharInterface+".StartNotify", 0).Err; err != nil {
		return nil, fmt.Errorf("start notify: %w", err)
	}

	c.mu.Lock()
	c.charPath = charPath
	c.sigChan = make(chan *dbus.Signal, 64)

	charRule := fmt.Sprintf("type='signal',interface='%s',member='PropertiesChanged',path='%s'", propsInterface, charPath)
	deviceRule := fmt.Sprintf("type='signal',interface='%s',member='PropertiesChanged',path='%s'", propsInterface, c.devicePath)
	for _, rule := range []string{charRule, deviceRule} {
		if err := c.addMatch(rule); err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("add match: %w", err)
		}
	}
	c.transport.conn.Signal(c.sigChan)
	sigChan := c.sigChan
	c.mu.Unlock()

	out := make(chan []byte, 64)
	go c.pump(sigChan, charPath, out)
	return out, nil
}

// pump translates PropertiesChanged signals into notification payloads and
// watches the device's Connected property for unsolicited drops.
func (c *connection) pump(sigChan chan *dbus.Signal, charPath dbus.ObjectPath, out chan<- []byte) {
	defer close(out)
	for sig := range sigChan {
		if sig == nil || sig.Name != propsChangedMember || len(sig.Body) < 2 {
			continue
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			continue
		}

		switch sig.Path {
		case charPath:
			if v, ok := changed["Value"]; ok {
				if data, ok := v.Value().([]byte); ok {
					out <- data
				}
			}
		case c.devicePath:
			if v, ok := changed["Connected"]; ok {
				if connected, ok := v.Value().(bool); ok && !connected {
					c.mu.Lock()
					fn := c.onDisconnect
					closed := c.closed
					c.mu.Unlock()
					if !closed && fn != nil {
						fn()
					}
					return
				}
			}
		}
	}
}

func (c *connection) Write(serviceUUID, charUUID string, data []byte) error {
	c.mu.Lock()
	charPath := c.charPath
	c.mu.Unlock()
	if charPath == "" {
		var err error
		if charPath, err = c.findCharacteristic(charUUID); err != nil {
			return err
		}
	}
	charObj := c.transport.conn.Object(bluezBusName, charPath)
	return charObj.Call(gattCharInterface+".WriteValue", 0, data, map[string]interface{}{}).Err
}

func (c *connection) OnUnsolicitedDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

func (c *connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sigChan := c.sigChan
	rules := c.matchRules
	c.matchRules = nil
	c.mu.Unlock()

	for _, rule := range rules {
		_ = c.transport.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule).Err
	}
	if sigChan != nil {
		c.transport.conn.RemoveSignal(sigChan)
		close(sigChan)
	}

	device := c.transport.conn.Object(bluezBusName, c.devicePath)
	return device.Call(deviceInterface+".Disconnect", 0).Err
}
