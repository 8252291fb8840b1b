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

// Package attsim is an in-memory ATT server.  It answers the GATT discovery
// requests for a declarative profile and doubles as a loopback bearer.
package attsim

import (
	"bytes"

	"mynewt.apache.org/gattdisc/gdxact/att"
	"mynewt.apache.org/gattdisc/gdxact/bledefs"
)

type attrType int

const (
	ATTR_TYPE_SVC attrType = iota
	ATTR_TYPE_CHR_DECL
	ATTR_TYPE_CHR_VAL
	ATTR_TYPE_DSC
)

type attr struct {
	handle uint16
	typ    attrType

	// Attribute type UUID.
	uuid bledefs.BleUuid

	// Service declarations: group end handle.  Characteristic
	// declarations and values: last handle of the characteristic.
	endHandle uint16

	value []byte
}

// Builds the attribute table for a profile.  Services are laid out
// consecutively from base: service declaration, then for each
// characteristic its declaration, value and descriptors.
func generateAttrs(p Profile, base uint16) []attr {
	var attrs []attr
	n := base

	for _, svc := range p.Svcs {
		svcUuid := svc.Uuid.Shorten()
		svcIdx := len(attrs)
		attrs = append(attrs, attr{
			handle: n,
			typ:    ATTR_TYPE_SVC,
			uuid:   bledefs.NewBleUuid16(bledefs.PrimarySvcUuid),
			value:  svcUuid.ToWire(),
		})

		for _, chr := range svc.Chrs {
			declIdx := len(attrs)
			declHandle := n + 1
			valHandle := n + 2
			chrUuid := chr.Uuid.Shorten()

			decl := []byte{byte(chr.Props), byte(valHandle),
				byte(valHandle >> 8)}
			attrs = append(attrs, attr{
				handle: declHandle,
				typ:    ATTR_TYPE_CHR_DECL,
				uuid:   bledefs.NewBleUuid16(bledefs.ChrDeclUuid),
				value:  append(decl, chrUuid.ToWire()...),
			})
			attrs = append(attrs, attr{
				handle: valHandle,
				typ:    ATTR_TYPE_CHR_VAL,
				uuid:   chrUuid,
			})
			n = valHandle

			for _, dsc := range chr.Dscs {
				n++
				attrs = append(attrs, attr{
					handle: n,
					typ:    ATTR_TYPE_DSC,
					uuid:   dsc.Uuid.Shorten(),
				})
			}

			attrs[declIdx].endHandle = n
			attrs[declIdx+1].endHandle = n
		}

		attrs[svcIdx].endHandle = n
		n++
	}

	return attrs
}

// Database is the attribute table of a simulated peer.
type Database struct {
	attrs []attr
	mtu   int
}

func NewDatabase(p Profile, mtu int) *Database {
	if mtu < bledefs.BLE_ATT_MTU_DFLT {
		mtu = bledefs.BLE_ATT_MTU_DFLT
	}

	return &Database{
		attrs: generateAttrs(p, bledefs.BLE_ATT_HANDLE_MIN),
		mtu:   mtu,
	}
}

func (db *Database) Mtu() int {
	return db.mtu
}

// SvcHandles returns the handle range of the first service with the given
// UUID.
func (db *Database) SvcHandles(uuid bledefs.BleUuid) (uint16, uint16, bool) {
	want := uuid.Shorten()
	for _, a := range db.attrs {
		if a.typ == ATTR_TYPE_SVC && bytes.Equal(a.value, want.ToWire()) {
			return a.handle, a.endHandle, true
		}
	}

	return 0, 0, false
}

// ChrHandles returns the value handle and last handle of the first
// characteristic with the given UUID.
func (db *Database) ChrHandles(uuid bledefs.BleUuid) (uint16, uint16, bool) {
	want := uuid.Shorten()
	for _, a := range db.attrs {
		if a.typ == ATTR_TYPE_CHR_VAL &&
			bledefs.CompareUuids(a.uuid, want) == 0 {

			return a.handle, a.endHandle, true
		}
	}

	return 0, 0, false
}

// DscHandle returns the handle of the first descriptor with UUID dscUuid
// belonging to the characteristic whose value handle is valHandle.
func (db *Database) DscHandle(valHandle uint16, dscUuid bledefs.BleUuid) uint16 {
	want := dscUuid.Shorten()
	for i, a := range db.attrs {
		if a.handle != valHandle || a.typ != ATTR_TYPE_CHR_VAL {
			continue
		}
		for _, d := range db.attrs[i+1:] {
			if d.typ != ATTR_TYPE_DSC {
				break
			}
			if bledefs.CompareUuids(d.uuid, want) == 0 {
				return d.handle
			}
		}
	}

	return 0
}

func (db *Database) inRange(start uint16, end uint16) []attr {
	var attrs []attr
	for _, a := range db.attrs {
		if a.handle >= start && a.handle <= end {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

func errRsp(reqOp uint8, handle uint16, code uint8) att.Pdu {
	return &att.ErrorRsp{
		ReqOp:  reqOp,
		Handle: handle,
		Code:   code,
	}
}

func validRange(start uint16, end uint16) bool {
	return start != 0 && start <= end
}

// Handle produces the response to a single request PDU.
func (db *Database) Handle(req []byte) att.Pdu {
	pdu, err := att.DecodePdu(req)
	if err != nil {
		var op uint8
		if len(req) > 0 {
			op = req[0]
		}
		return errRsp(op, 0, att.ERR_INVALID_PDU)
	}

	switch r := pdu.(type) {
	case *att.MtuReq:
		return &att.MtuRsp{Mtu: uint16(db.mtu)}

	case *att.FindByTypeValueReq:
		return db.findByTypeValue(r)

	case *att.ReadByTypeReq:
		return db.readByType(r)

	case *att.FindInfoReq:
		return db.findInfo(r)

	default:
		return errRsp(pdu.Opcode(), 0, att.ERR_REQ_NOT_SUPPORTED)
	}
}

func (db *Database) findByTypeValue(r *att.FindByTypeValueReq) att.Pdu {
	if !validRange(r.StartHandle, r.EndHandle) {
		return errRsp(r.Opcode(), r.StartHandle, att.ERR_INVALID_HANDLE)
	}

	maxInfos := (db.mtu - 1) / 4
	rsp := &att.FindByTypeValueRsp{}

	if r.AttrType == bledefs.PrimarySvcUuid {
		for _, a := range db.inRange(r.StartHandle, r.EndHandle) {
			if a.typ != ATTR_TYPE_SVC || !bytes.Equal(a.value, r.AttrValue) {
				continue
			}
			rsp.Infos = append(rsp.Infos, att.HandlesInfo{
				Handle:       a.handle,
				GrpEndHandle: a.endHandle,
			})
			if len(rsp.Infos) >= maxInfos {
				break
			}
		}
	}

	if len(rsp.Infos) == 0 {
		return errRsp(r.Opcode(), r.StartHandle, att.ERR_ATTR_NOT_FOUND)
	}
	return rsp
}

func (db *Database) readByType(r *att.ReadByTypeReq) att.Pdu {
	if !validRange(r.StartHandle, r.EndHandle) {
		return errRsp(r.Opcode(), r.StartHandle, att.ERR_INVALID_HANDLE)
	}

	rsp := &att.ReadByTypeRsp{}
	for _, a := range db.inRange(r.StartHandle, r.EndHandle) {
		if bledefs.CompareUuids(a.uuid, r.AttrType.Shorten()) != 0 {
			continue
		}

		// All records in one response share a length.
		recLen := 2 + len(a.value)
		if rsp.Len == 0 {
			rsp.Len = uint8(recLen)
		} else if int(rsp.Len) != recLen {
			break
		}
		if 2+len(rsp.Data)+recLen > db.mtu {
			break
		}

		rsp.Data = append(rsp.Data, byte(a.handle), byte(a.handle>>8))
		rsp.Data = append(rsp.Data, a.value...)
	}

	if len(rsp.Data) == 0 {
		return errRsp(r.Opcode(), r.StartHandle, att.ERR_ATTR_NOT_FOUND)
	}
	return rsp
}

func (db *Database) findInfo(r *att.FindInfoReq) att.Pdu {
	if !validRange(r.StartHandle, r.EndHandle) {
		return errRsp(r.Opcode(), r.StartHandle, att.ERR_INVALID_HANDLE)
	}

	rsp := &att.FindInfoRsp{}
	for _, a := range db.inRange(r.StartHandle, r.EndHandle) {
		format := uint8(att.FIND_INFO_FMT_16)
		if a.uuid.Width() == 16 {
			format = att.FIND_INFO_FMT_128
		}

		if rsp.Format == 0 {
			rsp.Format = format
		} else if rsp.Format != format {
			break
		}
		if 2+len(rsp.Data)+att.FindInfoRecLen(format) > db.mtu {
			break
		}

		rsp.Data = append(rsp.Data, byte(a.handle), byte(a.handle>>8))
		rsp.Data = append(rsp.Data, a.uuid.ToWire()...)
	}

	if len(rsp.Data) == 0 {
		return errRsp(r.Opcode(), r.StartHandle, att.ERR_ATTR_NOT_FOUND)
	}
	return rsp
}
