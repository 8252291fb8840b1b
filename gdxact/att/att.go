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

// Package att encodes and decodes the Attribute Protocol PDUs used by GATT
// discovery.
package att

import (
	"fmt"
)

const (
	OP_ERROR_RSP              = 0x01
	OP_MTU_REQ                = 0x02
	OP_MTU_RSP                = 0x03
	OP_FIND_INFO_REQ          = 0x04
	OP_FIND_INFO_RSP          = 0x05
	OP_FIND_BY_TYPE_VALUE_REQ = 0x06
	OP_FIND_BY_TYPE_VALUE_RSP = 0x07
	OP_READ_BY_TYPE_REQ       = 0x08
	OP_READ_BY_TYPE_RSP       = 0x09
)

var OpStringMap = map[uint8]string{
	OP_ERROR_RSP:              "error_rsp",
	OP_MTU_REQ:                "mtu_req",
	OP_MTU_RSP:                "mtu_rsp",
	OP_FIND_INFO_REQ:          "find_info_req",
	OP_FIND_INFO_RSP:          "find_info_rsp",
	OP_FIND_BY_TYPE_VALUE_REQ: "find_by_type_value_req",
	OP_FIND_BY_TYPE_VALUE_RSP: "find_by_type_value_rsp",
	OP_READ_BY_TYPE_REQ:       "read_by_type_req",
	OP_READ_BY_TYPE_RSP:       "read_by_type_rsp",
}

func OpString(op uint8) string {
	s := OpStringMap[op]
	if s == "" {
		return fmt.Sprintf("op_0x%02x", op)
	}
	return s
}

// RspOpFor maps a request opcode to the opcode of its success response.
var RspOpFor = map[uint8]uint8{
	OP_MTU_REQ:                OP_MTU_RSP,
	OP_FIND_INFO_REQ:          OP_FIND_INFO_RSP,
	OP_FIND_BY_TYPE_VALUE_REQ: OP_FIND_BY_TYPE_VALUE_RSP,
	OP_READ_BY_TYPE_REQ:       OP_READ_BY_TYPE_RSP,
}

const (
	ERR_INVALID_HANDLE       = 0x01
	ERR_READ_NOT_PERMITTED   = 0x02
	ERR_WRITE_NOT_PERMITTED  = 0x03
	ERR_INVALID_PDU          = 0x04
	ERR_INSUFFICIENT_AUTHEN  = 0x05
	ERR_REQ_NOT_SUPPORTED    = 0x06
	ERR_INVALID_OFFSET       = 0x07
	ERR_INSUFFICIENT_AUTHOR  = 0x08
	ERR_PREPARE_QUEUE_FULL   = 0x09
	ERR_ATTR_NOT_FOUND       = 0x0a
	ERR_ATTR_NOT_LONG        = 0x0b
	ERR_INSUFFICIENT_KEY_SZ  = 0x0c
	ERR_INVALID_ATTR_VAL_LEN = 0x0d
	ERR_UNLIKELY             = 0x0e
	ERR_INSUFFICIENT_ENC     = 0x0f
	ERR_UNSUPPORTED_GROUP    = 0x10
	ERR_INSUFFICIENT_RES     = 0x11
)

var ErrCodeStringMap = map[uint8]string{
	ERR_INVALID_HANDLE:       "invalid handle",
	ERR_READ_NOT_PERMITTED:   "read not permitted",
	ERR_WRITE_NOT_PERMITTED:  "write not permitted",
	ERR_INVALID_PDU:          "invalid pdu",
	ERR_INSUFFICIENT_AUTHEN:  "insufficient authentication",
	ERR_REQ_NOT_SUPPORTED:    "request not supported",
	ERR_INVALID_OFFSET:       "invalid offset",
	ERR_INSUFFICIENT_AUTHOR:  "insufficient authorization",
	ERR_PREPARE_QUEUE_FULL:   "prepare queue full",
	ERR_ATTR_NOT_FOUND:       "attribute not found",
	ERR_ATTR_NOT_LONG:        "attribute not long",
	ERR_INSUFFICIENT_KEY_SZ:  "insufficient encryption key size",
	ERR_INVALID_ATTR_VAL_LEN: "invalid attribute value length",
	ERR_UNLIKELY:             "unlikely error",
	ERR_INSUFFICIENT_ENC:     "insufficient encryption",
	ERR_UNSUPPORTED_GROUP:    "unsupported group type",
	ERR_INSUFFICIENT_RES:     "insufficient resources",
}

// Find Information response formats.
const (
	FIND_INFO_FMT_16  = 0x01
	FIND_INFO_FMT_128 = 0x02
)

// An ATT error code reported by the peer.
type Error struct {
	Code   uint8
	ReqOp  uint8
	Handle uint16
}

func (e *Error) Error() string {
	s := ErrCodeStringMap[e.Code]
	if s == "" {
		s = "unknown error"
	}

	return fmt.Sprintf("ATT error: %s (0x%02x); req=%s handle=0x%04x",
		s, e.Code, OpString(e.ReqOp), e.Handle)
}

func IsAttErr(err error, code uint8) bool {
	aerr, ok := err.(*Error)
	return ok && aerr.Code == code
}
