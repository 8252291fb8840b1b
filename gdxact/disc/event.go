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
	"fmt"
)

// Response kinds delivered by the procedure driver.  Values match the ATT
// opcodes of the corresponding PDUs.
type Method uint8

const (
	METHOD_NONE                   Method = 0x00
	METHOD_ERROR_RSP              Method = 0x01
	METHOD_FIND_INFO_REQ          Method = 0x04
	METHOD_FIND_INFO_RSP          Method = 0x05
	METHOD_FIND_BY_TYPE_VALUE_REQ Method = 0x06
	METHOD_FIND_BY_TYPE_VALUE_RSP Method = 0x07
	METHOD_READ_BY_TYPE_REQ       Method = 0x08
	METHOD_READ_BY_TYPE_RSP       Method = 0x09
)

var MethodStringMap = map[Method]string{
	METHOD_NONE:                   "none",
	METHOD_ERROR_RSP:              "error_rsp",
	METHOD_FIND_INFO_REQ:          "find_info_req",
	METHOD_FIND_INFO_RSP:          "find_info_rsp",
	METHOD_FIND_BY_TYPE_VALUE_REQ: "find_by_type_value_req",
	METHOD_FIND_BY_TYPE_VALUE_RSP: "find_by_type_value_rsp",
	METHOD_READ_BY_TYPE_REQ:       "read_by_type_req",
	METHOD_READ_BY_TYPE_RSP:       "read_by_type_rsp",
}

func (m Method) String() string {
	s := MethodStringMap[m]
	if s == "" {
		return fmt.Sprintf("0x%02x", uint8(m))
	}
	return s
}

const BLE_STATUS_SUCCESS = 0x00
const BLE_STATUS_PROC_COMPLETE = 0x1a

// Find Information response formats.
const FIND_INFO_FMT_16 = 0x01
const FIND_INFO_FMT_128 = 0x02

// One asynchronous response delivered by the procedure driver.  Data holds
// NumRecs records of RecLen bytes each, in ATT wire layout.
type RspEvent struct {
	Method Method
	Status int

	// For METHOD_ERROR_RSP: the request opcode the error answers.
	// METHOD_NONE if the driver does not know it.
	ReqMethod Method

	NumRecs int
	RecLen  int
	Format  int
	Data    []byte
}

func (ev *RspEvent) String() string {
	return fmt.Sprintf("method=%s status=0x%02x req=%s recs=%d reclen=%d "+
		"fmt=%d datalen=%d", ev.Method, ev.Status, ev.ReqMethod, ev.NumRecs,
		ev.RecLen, ev.Format, len(ev.Data))
}

// Receives response events from a procedure driver.
type EventFn func(ev *RspEvent)

// Issues discovery requests to the peer.  Responses arrive later as
// RspEvents.  A non-nil error means the request was never sent.
type Requester interface {
	DiscSvcUuid(connHandle uint16, uuid [16]byte) error
	DiscAllChrs(connHandle uint16, startHandle uint16, endHandle uint16) error
	DiscAllDscs(connHandle uint16, startHandle uint16, endHandle uint16) error
}

// Builds a record event carrying service ranges (find-by-type-value
// layout).
func NewSvcRangeEvent(status int, ranges ...SvcRange) *RspEvent {
	ev := &RspEvent{
		Method:  METHOD_FIND_BY_TYPE_VALUE_RSP,
		Status:  status,
		NumRecs: len(ranges),
		RecLen:  SVC_RANGE_LEN,
	}
	for _, r := range ranges {
		ev.Data = append(ev.Data, r.Bytes()...)
	}
	return ev
}

// Builds a record event carrying characteristic declarations.  All
// declarations must share one UUID width.
func NewChrDeclEvent(status int, decls ...ChrDecl) *RspEvent {
	ev := &RspEvent{
		Method:  METHOD_READ_BY_TYPE_RSP,
		Status:  status,
		NumRecs: len(decls),
	}
	for _, d := range decls {
		b := d.Bytes()
		ev.RecLen = len(b)
		ev.Data = append(ev.Data, b...)
	}
	return ev
}

// Builds a record event carrying 16-bit descriptor pairs.
func NewDscPairEvent(status int, pairs ...DscPair) *RspEvent {
	ev := &RspEvent{
		Method:  METHOD_FIND_INFO_RSP,
		Status:  status,
		NumRecs: len(pairs),
		RecLen:  DSC_PAIR_LEN,
		Format:  FIND_INFO_FMT_16,
	}
	for _, p := range pairs {
		ev.Data = append(ev.Data, p.Bytes()...)
	}
	return ev
}

// Builds the terminal event of a procedure.
func NewCompleteEvent(method Method) *RspEvent {
	return &RspEvent{
		Method: method,
		Status: BLE_STATUS_PROC_COMPLETE,
	}
}

func NewErrorEvent(reqMethod Method, attErr int) *RspEvent {
	return &RspEvent{
		Method:    METHOD_ERROR_RSP,
		Status:    attErr,
		ReqMethod: reqMethod,
	}
}
