// Package doorcentral drives the mobile side of the protocol: scan,
// connect, read the Challenge characteristic, run the
// variant-specific handshake, and present the credential. It is written
// against a small BLE abstraction so it can run over a real platform
// Bluetooth stack or a mock for tests.
package doorcentral

import "context"

// Device is one scan result.
type Device struct {
	Name string
	MAC  string
	RSSI int
}

// Characteristic is a single GATT characteristic handle.
type Characteristic interface {
	Write(data []byte) error
	Read() ([]byte, error)
	Subscribe(cb func([]byte)) error
}

// Connection is an established link to one peripheral.
type Connection interface {
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	Disconnect() error
	OnDisconnect(cb func())
}

// Adapter is the local BLE radio: scan for and connect to peripherals.
type Adapter interface {
	Enable() error
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	Connect(ctx context.Context, mac string) (Connection, error)
}

// GATT UUIDs for the door-unlock service (spec §3).
const (
	ServiceUUID       = "7e57-0001-0000-1000-8000-00805f9b34fb"
	ChallengeCharUUID = "7e57-0002-0000-1000-8000-00805f9b34fb"
	AuthCharUUID      = "7e57-0003-0000-1000-8000-00805f9b34fb"
	ResponseCharUUID  = "7e57-0004-0000-1000-8000-00805f9b34fb"
)
