package telemetry

import (
	"time"
)

// LoginPrefix is the reserved marker distinguishing an identity-card read
// from an inventory-item read. Login cards are provisioned with the bare UID;
// the edge scanner prepends the prefix when sending.
const LoginPrefix = "LOGIN:"

// DeviceIDHeader is the message header under which the broker stamps the
// device id of the authenticated publishing connection. This is the
// authoritative device identity; the body field is a fallback only.
const DeviceIDHeader = "device-id"

// ScanMessage is the device telemetry wire contract
type ScanMessage struct {
	RfidUid   string    `json:"rfidUid"`
	DeviceID  string    `json:"deviceId"`
	Timestamp time.Time `json:"timestamp"`
}

// Delivery is one raw message off the event stream together with the
// transport-level metadata about the sender
type Delivery struct {
	Body           []byte
	HeaderDeviceID string
}
