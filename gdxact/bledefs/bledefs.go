/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package bledefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const BLE_ATT_MTU_DFLT = 23
const BLE_ATT_MTU_MAX = 527

const BLE_ATT_HANDLE_MIN = 0x0001
const BLE_ATT_HANDLE_MAX = 0xffff

// Attribute types used during discovery.
const PrimarySvcUuid = 0x2800
const SecondarySvcUuid = 0x2801
const IncludeUuid = 0x2802
const ChrDeclUuid = 0x2803
const CccdUuid = 0x2902

// Apple Notification Center Service.
const AncsSvcUuid = "7905F431-B5CE-4E99-A40F-4B1E122D00D0"
const AncsNotifSrcChrUuid = "9FBF120D-6301-42D9-8C58-25E699A21DBD"
const AncsCtrlPointChrUuid = "69D1D8F3-45E1-49A8-9821-9BBDFDAAD9D9"
const AncsDataSrcChrUuid = "22EAC6E9-24D6-4BB5-BE44-B36ACE7C7BFB"

// Bluetooth base UUID: 0000xxxx-0000-1000-8000-00805F9B34FB.
var BleBaseUuid = BleUuid128{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb,
}

type BleAddrType int

const (
	BLE_ADDR_TYPE_PUBLIC  BleAddrType = 0
	BLE_ADDR_TYPE_RANDOM  BleAddrType = 1
	BLE_ADDR_TYPE_RPA_PUB BleAddrType = 2
	BLE_ADDR_TYPE_RPA_RND BleAddrType = 3
)

// Indexed by address type.
var bleAddrTypeNames = []string{
	"public",
	"random",
	"rpa_pub",
	"rpa_rnd",
}

func (a BleAddrType) String() string {
	if a < 0 || int(a) >= len(bleAddrTypeNames) {
		return "???"
	}
	return bleAddrTypeNames[a]
}

func ParseBleAddrType(s string) (BleAddrType, error) {
	for i, name := range bleAddrTypeNames {
		if s == name {
			return BleAddrType(i), nil
		}
	}

	return BLE_ADDR_TYPE_PUBLIC, fmt.Errorf("Invalid BleAddrType string: %s", s)
}

func (a BleAddrType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *BleAddrType) UnmarshalText(text []byte) error {
	var err error
	*a, err = ParseBleAddrType(string(text))
	return err
}

// A device address in display order (most significant byte first).
type BleAddr struct {
	Bytes [6]byte
}

func ParseBleAddr(s string) (BleAddr, error) {
	ba := BleAddr{}

	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != len(ba.Bytes) {
		return ba, fmt.Errorf("invalid BLE addr string: %s", s)
	}

	copy(ba.Bytes[:], hw)
	return ba, nil
}

func (ba BleAddr) String() string {
	return net.HardwareAddr(ba.Bytes[:]).String()
}

type BleUuid16 uint16

func (bu16 BleUuid16) String() string {
	return fmt.Sprintf("0x%04x", uint16(bu16))
}

// ParseUuid16 accepts any integer literal strconv understands ("0x2902",
// "10498").
func ParseUuid16(s string) (BleUuid16, error) {
	val, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("Invalid UUID: %s", s)
	}

	return BleUuid16(val), nil
}

// A 128-bit UUID in display (big-endian) byte order.  The ATT wire format
// carries UUIDs little-endian; use ToWire / BleUuidFromWire to convert.
type BleUuid128 [16]byte

func (bu128 *BleUuid128) String() string {
	return uuid.UUID(*bu128).String()
}

func ParseUuid128(s string) (BleUuid128, error) {
	var bu128 BleUuid128

	// The google parser also accepts the urn and braced forms; only the
	// canonical 36-character form is valid here.
	if len(s) != 36 {
		return bu128, fmt.Errorf("Invalid UUID: %s", s)
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return bu128, fmt.Errorf("Invalid UUID: %s", s)
	}

	return BleUuid128(u), nil
}

type BleUuid struct {
	// Set to 0 if the 128-bit UUID should be used.
	U16 BleUuid16

	// Set to nil if the 16-bit UUID should be used.
	U128 BleUuid128
}

func (bu BleUuid) String() string {
	if bu.U16 == 0 {
		return bu.U128.String()
	}
	return bu.U16.String()
}

func NewBleUuid16(u16 uint16) BleUuid {
	return BleUuid{U16: BleUuid16(u16)}
}

func MustParseUuid(s string) BleUuid {
	bu, err := ParseUuid(s)
	if err != nil {
		panic(err.Error())
	}
	return bu
}

// ParseUuid parses either a 16-bit integer literal or a canonical 128-bit
// UUID string.
func ParseUuid(s string) (BleUuid, error) {
	if u16, err := ParseUuid16(s); err == nil && u16 != 0 {
		return BleUuid{U16: u16}, nil
	}

	u128, err := ParseUuid128(s)
	if err != nil {
		return BleUuid{}, err
	}

	return BleUuid{U128: u128}, nil
}

// Width returns the number of bytes the UUID occupies on the wire.
func (bu *BleUuid) Width() int {
	if bu.U16 != 0 {
		return 2
	}
	return 16
}

// To128 expands a 16-bit UUID onto the Bluetooth base UUID.  128-bit UUIDs
// are returned unchanged.
func (bu *BleUuid) To128() BleUuid128 {
	if bu.U16 == 0 {
		return bu.U128
	}

	u128 := BleBaseUuid
	u128[2] = byte(bu.U16 >> 8)
	u128[3] = byte(bu.U16)
	return u128
}

// Shorten converts a base-derived 128-bit UUID to its 16-bit form.  Any other
// UUID is returned unchanged.
func (bu *BleUuid) Shorten() BleUuid {
	if bu.U16 != 0 {
		return *bu
	}

	if bu.U128[0] != 0 || bu.U128[1] != 0 ||
		!bytes.Equal(bu.U128[4:], BleBaseUuid[4:]) {

		return *bu
	}

	u16 := uint16(bu.U128[2])<<8 | uint16(bu.U128[3])
	if u16 == 0 {
		return *bu
	}
	return NewBleUuid16(u16)
}

// ToWire returns the little-endian wire encoding of the UUID (2 or 16
// bytes).
func (bu *BleUuid) ToWire() []byte {
	if bu.U16 != 0 {
		return []byte{byte(bu.U16), byte(bu.U16 >> 8)}
	}

	b := make([]byte, 16)
	for i := 0; i < 16; i++ {
		b[i] = bu.U128[15-i]
	}
	return b
}

// Wire128 returns the little-endian 16-byte encoding, expanding 16-bit UUIDs
// onto the base UUID.
func (bu *BleUuid) Wire128() [16]byte {
	u128 := bu.To128()

	var b [16]byte
	for i := 0; i < 16; i++ {
		b[i] = u128[15-i]
	}
	return b
}

// BleUuidFromWire decodes a 2- or 16-byte little-endian UUID.
func BleUuidFromWire(b []byte) (BleUuid, error) {
	bu := BleUuid{}

	switch len(b) {
	case 2:
		bu.U16 = BleUuid16(uint16(b[0]) | uint16(b[1])<<8)
		return bu, nil

	case 16:
		for i := 0; i < 16; i++ {
			bu.U128[i] = b[15-i]
		}
		return bu, nil

	default:
		return bu, fmt.Errorf("Invalid UUID length: %d", len(b))
	}
}

// 16-bit UUIDs are encoded as JSON numbers, 128-bit UUIDs as strings.
func (bu BleUuid) MarshalJSON() ([]byte, error) {
	if bu.U16 != 0 {
		return json.Marshal(uint16(bu.U16))
	}
	return json.Marshal(bu.U128.String())
}

func (bu *BleUuid) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch t := v.(type) {
	case string:
		u, err := ParseUuid(t)
		if err != nil {
			return err
		}
		*bu = u

	case float64:
		if t <= 0 || t > 0xffff || t != float64(uint16(t)) {
			return fmt.Errorf("Invalid UUID: %v", t)
		}
		*bu = NewBleUuid16(uint16(t))

	default:
		return fmt.Errorf("Invalid UUID: %s", string(data))
	}

	return nil
}

// CompareUuids orders 16-bit UUIDs before 128-bit ones.  It returns 0 only
// for identical UUIDs; a 16-bit UUID and its 128-bit expansion differ.
func CompareUuids(a BleUuid, b BleUuid) int {
	if wa, wb := a.Width(), b.Width(); wa != wb {
		return wa - wb
	}

	if a.U16 != 0 {
		return int(a.U16) - int(b.U16)
	}
	return bytes.Compare(a.U128[:], b.U128[:])
}

// Properties advertised in a characteristic declaration.
type BleChrProperties uint8

const (
	BLE_GATT_F_BROADCAST       BleChrProperties = 0x01
	BLE_GATT_F_READ            BleChrProperties = 0x02
	BLE_GATT_F_WRITE_NO_RSP    BleChrProperties = 0x04
	BLE_GATT_F_WRITE           BleChrProperties = 0x08
	BLE_GATT_F_NOTIFY          BleChrProperties = 0x10
	BLE_GATT_F_INDICATE        BleChrProperties = 0x20
	BLE_GATT_F_AUTH_SIGN_WRITE BleChrProperties = 0x40
	BLE_GATT_F_EXTENDED        BleChrProperties = 0x80
)

var BleChrPropertiesStringMap = map[BleChrProperties]string{
	BLE_GATT_F_BROADCAST:       "broadcast",
	BLE_GATT_F_READ:            "read",
	BLE_GATT_F_WRITE_NO_RSP:    "write_no_rsp",
	BLE_GATT_F_WRITE:           "write",
	BLE_GATT_F_NOTIFY:          "notify",
	BLE_GATT_F_INDICATE:        "indicate",
	BLE_GATT_F_AUTH_SIGN_WRITE: "auth_sign_write",
	BLE_GATT_F_EXTENDED:        "extended",
}

func (p BleChrProperties) String() string {
	var names []string
	for bit := BleChrProperties(1); bit != 0; bit <<= 1 {
		if p&bit != 0 {
			names = append(names, BleChrPropertiesStringMap[bit])
		}
	}

	return strings.Join(names, "|")
}
