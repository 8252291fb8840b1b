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

package att

import (
	"encoding/binary"
	"fmt"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
)

type Pdu interface {
	Opcode() uint8
	Bytes() []byte
}

type ErrorRsp struct {
	ReqOp  uint8
	Handle uint16
	Code   uint8
}

type MtuReq struct {
	Mtu uint16
}

type MtuRsp struct {
	Mtu uint16
}

type FindInfoReq struct {
	StartHandle uint16
	EndHandle   uint16
}

// Data holds handle/UUID pairs; 4 bytes each in the 16-bit format, 18 in
// the 128-bit format.
type FindInfoRsp struct {
	Format uint8
	Data   []byte
}

type FindByTypeValueReq struct {
	StartHandle uint16
	EndHandle   uint16
	AttrType    uint16
	AttrValue   []byte
}

type HandlesInfo struct {
	Handle       uint16
	GrpEndHandle uint16
}

type FindByTypeValueRsp struct {
	Infos []HandlesInfo
}

type ReadByTypeReq struct {
	StartHandle uint16
	EndHandle   uint16
	AttrType    bledefs.BleUuid
}

// Data holds handle/value pairs of Len bytes each.
type ReadByTypeRsp struct {
	Len  uint8
	Data []byte
}

func (r *ErrorRsp) Opcode() uint8           { return OP_ERROR_RSP }
func (r *MtuReq) Opcode() uint8             { return OP_MTU_REQ }
func (r *MtuRsp) Opcode() uint8             { return OP_MTU_RSP }
func (r *FindInfoReq) Opcode() uint8        { return OP_FIND_INFO_REQ }
func (r *FindInfoRsp) Opcode() uint8        { return OP_FIND_INFO_RSP }
func (r *FindByTypeValueReq) Opcode() uint8 { return OP_FIND_BY_TYPE_VALUE_REQ }
func (r *FindByTypeValueRsp) Opcode() uint8 { return OP_FIND_BY_TYPE_VALUE_RSP }
func (r *ReadByTypeReq) Opcode() uint8      { return OP_READ_BY_TYPE_REQ }
func (r *ReadByTypeRsp) Opcode() uint8      { return OP_READ_BY_TYPE_RSP }

func (r *ErrorRsp) Err() *Error {
	return &Error{
		Code:   r.Code,
		ReqOp:  r.ReqOp,
		Handle: r.Handle,
	}
}

func putHandles(b []byte, start uint16, end uint16) []byte {
	b = append(b, byte(start), byte(start>>8))
	return append(b, byte(end), byte(end>>8))
}

func (r *ErrorRsp) Bytes() []byte {
	return []byte{
		OP_ERROR_RSP, r.ReqOp, byte(r.Handle), byte(r.Handle >> 8), r.Code,
	}
}

func (r *MtuReq) Bytes() []byte {
	return []byte{OP_MTU_REQ, byte(r.Mtu), byte(r.Mtu >> 8)}
}

func (r *MtuRsp) Bytes() []byte {
	return []byte{OP_MTU_RSP, byte(r.Mtu), byte(r.Mtu >> 8)}
}

func (r *FindInfoReq) Bytes() []byte {
	return putHandles([]byte{OP_FIND_INFO_REQ}, r.StartHandle, r.EndHandle)
}

func (r *FindInfoRsp) Bytes() []byte {
	return append([]byte{OP_FIND_INFO_RSP, r.Format}, r.Data...)
}

func (r *FindByTypeValueReq) Bytes() []byte {
	b := putHandles([]byte{OP_FIND_BY_TYPE_VALUE_REQ},
		r.StartHandle, r.EndHandle)
	b = append(b, byte(r.AttrType), byte(r.AttrType>>8))
	return append(b, r.AttrValue...)
}

func (r *FindByTypeValueRsp) Bytes() []byte {
	b := []byte{OP_FIND_BY_TYPE_VALUE_RSP}
	for _, info := range r.Infos {
		b = putHandles(b, info.Handle, info.GrpEndHandle)
	}
	return b
}

func (r *ReadByTypeReq) Bytes() []byte {
	b := putHandles([]byte{OP_READ_BY_TYPE_REQ}, r.StartHandle, r.EndHandle)
	return append(b, r.AttrType.ToWire()...)
}

func (r *ReadByTypeRsp) Bytes() []byte {
	return append([]byte{OP_READ_BY_TYPE_RSP, r.Len}, r.Data...)
}

// FindInfoRecLen returns the size of one handle/UUID pair in the given
// format, or 0 for an unknown format.
func FindInfoRecLen(format uint8) int {
	switch format {
	case FIND_INFO_FMT_16:
		return 4
	case FIND_INFO_FMT_128:
		return 18
	default:
		return 0
	}
}

func errShort(op uint8, have int, want int) error {
	return fmt.Errorf("%s too short: have=%d want>=%d", OpString(op), have,
		want)
}

func decodeHandles(b []byte) (uint16, uint16) {
	return binary.LittleEndian.Uint16(b[0:2]), binary.LittleEndian.Uint16(b[2:4])
}

// DecodePdu parses a single ATT PDU.  Unsupported opcodes and malformed
// PDUs produce an error.
func DecodePdu(b []byte) (Pdu, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty ATT PDU")
	}

	op := b[0]
	body := b[1:]

	switch op {
	case OP_ERROR_RSP:
		if len(body) != 4 {
			return nil, errShort(op, len(body), 4)
		}
		return &ErrorRsp{
			ReqOp:  body[0],
			Handle: binary.LittleEndian.Uint16(body[1:3]),
			Code:   body[3],
		}, nil

	case OP_MTU_REQ, OP_MTU_RSP:
		if len(body) != 2 {
			return nil, errShort(op, len(body), 2)
		}
		mtu := binary.LittleEndian.Uint16(body)
		if op == OP_MTU_REQ {
			return &MtuReq{Mtu: mtu}, nil
		}
		return &MtuRsp{Mtu: mtu}, nil

	case OP_FIND_INFO_REQ:
		if len(body) != 4 {
			return nil, errShort(op, len(body), 4)
		}
		start, end := decodeHandles(body)
		return &FindInfoReq{StartHandle: start, EndHandle: end}, nil

	case OP_FIND_INFO_RSP:
		if len(body) < 1 {
			return nil, errShort(op, len(body), 1)
		}
		recLen := FindInfoRecLen(body[0])
		if recLen == 0 {
			return nil, fmt.Errorf("%s has invalid format: %d",
				OpString(op), body[0])
		}
		if len(body) == 1 || (len(body)-1)%recLen != 0 {
			return nil, fmt.Errorf("%s has invalid length: %d",
				OpString(op), len(body))
		}
		return &FindInfoRsp{
			Format: body[0],
			Data:   append([]byte(nil), body[1:]...),
		}, nil

	case OP_FIND_BY_TYPE_VALUE_REQ:
		if len(body) < 6 {
			return nil, errShort(op, len(body), 6)
		}
		start, end := decodeHandles(body)
		return &FindByTypeValueReq{
			StartHandle: start,
			EndHandle:   end,
			AttrType:    binary.LittleEndian.Uint16(body[4:6]),
			AttrValue:   append([]byte(nil), body[6:]...),
		}, nil

	case OP_FIND_BY_TYPE_VALUE_RSP:
		if len(body) == 0 || len(body)%4 != 0 {
			return nil, fmt.Errorf("%s has invalid length: %d",
				OpString(op), len(body))
		}
		rsp := &FindByTypeValueRsp{}
		for i := 0; i < len(body); i += 4 {
			start, end := decodeHandles(body[i:])
			rsp.Infos = append(rsp.Infos, HandlesInfo{start, end})
		}
		return rsp, nil

	case OP_READ_BY_TYPE_REQ:
		if len(body) != 6 && len(body) != 20 {
			return nil, fmt.Errorf("%s has invalid length: %d",
				OpString(op), len(body))
		}
		start, end := decodeHandles(body)
		uuid, err := bledefs.BleUuidFromWire(body[4:])
		if err != nil {
			return nil, err
		}
		return &ReadByTypeReq{
			StartHandle: start,
			EndHandle:   end,
			AttrType:    uuid,
		}, nil

	case OP_READ_BY_TYPE_RSP:
		if len(body) < 1 {
			return nil, errShort(op, len(body), 1)
		}
		recLen := int(body[0])
		if recLen < 2 || len(body) == 1 || (len(body)-1)%recLen != 0 {
			return nil, fmt.Errorf("%s has invalid length: len=%d total=%d",
				OpString(op), recLen, len(body))
		}
		return &ReadByTypeRsp{
			Len:  body[0],
			Data: append([]byte(nil), body[1:]...),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported ATT opcode: 0x%02x", op)
	}
}
