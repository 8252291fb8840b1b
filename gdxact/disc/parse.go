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

package disc

import (
	"encoding/binary"
	"fmt"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
)

const SVC_RANGE_LEN = 4
const DSC_PAIR_LEN = 4

// Declaration handle, properties and value handle precede the UUID.
const CHR_DECL_HDR_LEN = 5
const CHR_DECL_UUID16_LEN = CHR_DECL_HDR_LEN + 2
const CHR_DECL_UUID128_LEN = CHR_DECL_HDR_LEN + 16

type SvcRange struct {
	Start uint16
	End   uint16
}

type ChrDecl struct {
	DeclHandle uint16
	Props      bledefs.BleChrProperties
	ValHandle  uint16
	Uuid       bledefs.BleUuid
}

type DscPair struct {
	Handle uint16
	Uuid   bledefs.BleUuid16
}

func DecodeSvcRange(b []byte) (SvcRange, error) {
	if len(b) != SVC_RANGE_LEN {
		return SvcRange{}, fmt.Errorf(
			"service range has invalid length: have=%d want=%d",
			len(b), SVC_RANGE_LEN)
	}

	r := SvcRange{
		Start: binary.LittleEndian.Uint16(b[0:2]),
		End:   binary.LittleEndian.Uint16(b[2:4]),
	}
	if r.Start == 0 || r.End < r.Start {
		return SvcRange{}, fmt.Errorf("invalid service range: %d-%d",
			r.Start, r.End)
	}

	return r, nil
}

func (r SvcRange) Bytes() []byte {
	b := make([]byte, SVC_RANGE_LEN)
	binary.LittleEndian.PutUint16(b[0:2], r.Start)
	binary.LittleEndian.PutUint16(b[2:4], r.End)
	return b
}

// DecodeChrDecl decodes one characteristic declaration record.  uuidLen is
// the width of the type UUID in bytes (2 or 16).
func DecodeChrDecl(b []byte, uuidLen int) (ChrDecl, error) {
	if uuidLen != 2 && uuidLen != 16 {
		return ChrDecl{}, fmt.Errorf("invalid UUID width: %d", uuidLen)
	}

	if len(b) != CHR_DECL_HDR_LEN+uuidLen {
		return ChrDecl{}, fmt.Errorf(
			"characteristic declaration has invalid length: have=%d want=%d",
			len(b), CHR_DECL_HDR_LEN+uuidLen)
	}

	uuid, err := bledefs.BleUuidFromWire(b[CHR_DECL_HDR_LEN:])
	if err != nil {
		return ChrDecl{}, err
	}

	d := ChrDecl{
		DeclHandle: binary.LittleEndian.Uint16(b[0:2]),
		Props:      bledefs.BleChrProperties(b[2]),
		ValHandle:  binary.LittleEndian.Uint16(b[3:5]),
		Uuid:       uuid,
	}

	// A declaration at handle 0 would resolve a pending end handle to
	// 0xffff.
	if d.DeclHandle == 0 {
		return ChrDecl{}, fmt.Errorf("characteristic declaration at handle 0")
	}

	return d, nil
}

func (d ChrDecl) Bytes() []byte {
	b := make([]byte, CHR_DECL_HDR_LEN)
	binary.LittleEndian.PutUint16(b[0:2], d.DeclHandle)
	b[2] = byte(d.Props)
	binary.LittleEndian.PutUint16(b[3:5], d.ValHandle)
	return append(b, d.Uuid.ToWire()...)
}

func DecodeDscPair(b []byte) (DscPair, error) {
	if len(b) != DSC_PAIR_LEN {
		return DscPair{}, fmt.Errorf(
			"descriptor pair has invalid length: have=%d want=%d",
			len(b), DSC_PAIR_LEN)
	}

	return DscPair{
		Handle: binary.LittleEndian.Uint16(b[0:2]),
		Uuid:   bledefs.BleUuid16(binary.LittleEndian.Uint16(b[2:4])),
	}, nil
}

func (p DscPair) Bytes() []byte {
	b := make([]byte, DSC_PAIR_LEN)
	binary.LittleEndian.PutUint16(b[0:2], p.Handle)
	binary.LittleEndian.PutUint16(b[2:4], uint16(p.Uuid))
	return b
}

// Returns the event's records as RecLen-sized slices, or nil if the record
// count and length do not describe the payload exactly.
func splitRecs(ev *RspEvent, recLen int) [][]byte {
	if ev.NumRecs <= 0 || ev.RecLen != recLen {
		return nil
	}
	if len(ev.Data) != ev.NumRecs*recLen {
		return nil
	}

	recs := make([][]byte, ev.NumRecs)
	for i := range recs {
		recs[i] = ev.Data[i*recLen : (i+1)*recLen]
	}
	return recs
}

// SvcRanges returns the service ranges carried by a find-by-type-value
// response.  A malformed response yields nil.
func SvcRanges(ev *RspEvent) []SvcRange {
	if ev == nil || ev.Method != METHOD_FIND_BY_TYPE_VALUE_RSP {
		return nil
	}

	recs := splitRecs(ev, SVC_RANGE_LEN)
	if recs == nil {
		return nil
	}

	ranges := make([]SvcRange, len(recs))
	for i, rec := range recs {
		r, err := DecodeSvcRange(rec)
		if err != nil {
			return nil
		}
		ranges[i] = r
	}

	return ranges
}

// ChrDecls returns the characteristic declarations carried by a
// read-by-type response whose records hold uuidLen-byte UUIDs.  A response
// with any other record length yields nil.
func ChrDecls(ev *RspEvent, uuidLen int) []ChrDecl {
	if ev == nil || ev.Method != METHOD_READ_BY_TYPE_RSP {
		return nil
	}

	recs := splitRecs(ev, CHR_DECL_HDR_LEN+uuidLen)
	if recs == nil {
		return nil
	}

	decls := make([]ChrDecl, len(recs))
	for i, rec := range recs {
		d, err := DecodeChrDecl(rec, uuidLen)
		if err != nil {
			return nil
		}
		decls[i] = d
	}

	return decls
}

// DscPairs returns the descriptor pairs carried by a find-information
// response in the 16-bit format.  128-bit formatted responses yield nil.
func DscPairs(ev *RspEvent) []DscPair {
	if ev == nil || ev.Method != METHOD_FIND_INFO_RSP ||
		ev.Format != FIND_INFO_FMT_16 {

		return nil
	}

	recs := splitRecs(ev, DSC_PAIR_LEN)
	if recs == nil {
		return nil
	}

	pairs := make([]DscPair, len(recs))
	for i, rec := range recs {
		p, err := DecodeDscPair(rec)
		if err != nil {
			return nil
		}
		pairs[i] = p
	}

	return pairs
}
