// Package ibeacon encodes and decodes the Apple iBeacon manufacturer-specific
// BLE advertising data block, used by the intercom peripheral to advertise
// its presence before a central connects (spec §4, advertising layer).
package ibeacon

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// AppleCompanyID is the Bluetooth SIG company identifier Apple registered,
// used as the first two (little-endian) bytes of manufacturer-specific data.
const AppleCompanyID uint16 = 0x004C

// iBeaconType and iBeaconDataLen are the fixed type/length bytes Apple's
// iBeacon sub-type uses inside manufacturer-specific data.
const (
	iBeaconType    byte = 0x02
	iBeaconDataLen byte = 0x15 // 21 bytes follow: UUID(16) + Major(2) + Minor(2) + TxPower(1)
)

// DataBlock is the decoded contents of an iBeacon manufacturer-specific
// advertising structure.
type DataBlock struct {
	ProximityUUID uuid.UUID
	Major         uint16
	Minor         uint16
	TxPower       int8 // calibrated RSSI at 1 meter
}

// Encode serializes a DataBlock to the wire bytes that follow the AD
// structure's length/type header, i.e. CompanyID(2 LE) |
// Type(1) | Len(1) | UUID(16) | Major(2 BE) | Minor(2 BE) | TxPower(1).
func Encode(b DataBlock) []byte {
	out := make([]byte, 0, 25)
	var companyID [2]byte
	binary.LittleEndian.PutUint16(companyID[:], AppleCompanyID)
	out = append(out, companyID[:]...)
	out = append(out, iBeaconType, iBeaconDataLen)
	out = append(out, b.ProximityUUID[:]...)
	var major, minor [2]byte
	binary.BigEndian.PutUint16(major[:], b.Major)
	binary.BigEndian.PutUint16(minor[:], b.Minor)
	out = append(out, major[:]...)
	out = append(out, minor[:]...)
	out = append(out, byte(b.TxPower))
	return out
}

// Decode parses a manufacturer-specific advertising payload (including its
// 2-byte company ID prefix) back into a DataBlock, rejecting anything that
// isn't a well-formed Apple iBeacon structure.
func Decode(raw []byte) (DataBlock, error) {
	var b DataBlock
	if len(raw) != 25 {
		return b, fmt.Errorf("ibeacon: expected 25 bytes, got %d", len(raw))
	}
	companyID := binary.LittleEndian.Uint16(raw[0:2])
	if companyID != AppleCompanyID {
		return b, fmt.Errorf("ibeacon: unexpected company id %#04x", companyID)
	}
	if raw[2] != iBeaconType {
		return b, fmt.Errorf("ibeacon: unexpected type byte %#02x", raw[2])
	}
	if raw[3] != iBeaconDataLen {
		return b, fmt.Errorf("ibeacon: unexpected length byte %#02x", raw[3])
	}
	copy(b.ProximityUUID[:], raw[4:20])
	b.Major = binary.BigEndian.Uint16(raw[20:22])
	b.Minor = binary.BigEndian.Uint16(raw[22:24])
	b.TxPower = int8(raw[24])
	return b, nil
}
