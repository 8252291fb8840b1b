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

// Package gattc runs GATT discovery procedures over an ATT bearer and
// reports their progress as discovery events.
package gattc

import (
	"encoding/hex"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/gattdisc/gdxact/att"
	"mynewt.apache.org/gattdisc/gdxact/bledefs"
	"mynewt.apache.org/gattdisc/gdxact/disc"
	"mynewt.apache.org/gattdisc/gdxact/gdxutil"
	"mynewt.apache.org/gattdisc/gdxact/xport"
)

// A discovery procedure in flight.  The procedure is repeated over the
// remainder of its handle range until the range is exhausted or the peer
// reports that no more attributes exist.
type proc struct {
	reqOp      uint8
	rspMethod  disc.Method
	connHandle uint16
	start      uint16
	end        uint16

	// Find-by-type-value only.
	svcUuid []byte
}

// Client drives one procedure at a time over a single bearer.
type Client struct {
	x     xport.Xport
	evCb  disc.EventFn
	errCb func(err error)

	mtx  sync.Mutex
	proc *proc
}

func NewClient(x xport.Xport) *Client {
	c := &Client{
		x: x,
	}
	x.SetRxCb(c.rx)

	return c
}

// Start starts the bearer.  evCb receives every discovery event; errCb
// receives errors that abort a procedure after its first request was
// accepted.  Both are called from the bearer's receive goroutine.
func (c *Client) Start(evCb disc.EventFn, errCb func(err error)) error {
	c.mtx.Lock()
	c.evCb = evCb
	c.errCb = errCb
	c.mtx.Unlock()

	return c.x.Start()
}

// Cancel abandons the procedure in flight.  Responses to it that arrive
// later are dropped.
func (c *Client) Cancel() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.proc != nil {
		log.Debugf("gattc: cancelling %s", att.OpString(c.proc.reqOp))
		c.proc = nil
	}
}

// Stop abandons any procedure in flight and stops the bearer.
func (c *Client) Stop() error {
	c.Cancel()
	return c.x.Stop()
}

func (c *Client) Busy() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.proc != nil
}

func (c *Client) DiscSvcUuid(connHandle uint16, uuid [16]byte) error {
	bu, err := bledefs.BleUuidFromWire(uuid[:])
	if err != nil {
		return err
	}

	// Services with a 16-bit alias must be looked up by the alias.
	bu = bu.Shorten()

	return c.begin(&proc{
		reqOp:      att.OP_FIND_BY_TYPE_VALUE_REQ,
		rspMethod:  disc.METHOD_FIND_BY_TYPE_VALUE_RSP,
		connHandle: connHandle,
		start:      bledefs.BLE_ATT_HANDLE_MIN,
		end:        bledefs.BLE_ATT_HANDLE_MAX,
		svcUuid:    bu.ToWire(),
	})
}

func (c *Client) DiscAllChrs(connHandle uint16, startHandle uint16,
	endHandle uint16) error {

	return c.begin(&proc{
		reqOp:      att.OP_READ_BY_TYPE_REQ,
		rspMethod:  disc.METHOD_READ_BY_TYPE_RSP,
		connHandle: connHandle,
		start:      startHandle,
		end:        endHandle,
	})
}

func (c *Client) DiscAllDscs(connHandle uint16, startHandle uint16,
	endHandle uint16) error {

	return c.begin(&proc{
		reqOp:      att.OP_FIND_INFO_REQ,
		rspMethod:  disc.METHOD_FIND_INFO_RSP,
		connHandle: connHandle,
		start:      startHandle,
		end:        endHandle,
	})
}

func (p *proc) req() att.Pdu {
	switch p.reqOp {
	case att.OP_FIND_BY_TYPE_VALUE_REQ:
		return &att.FindByTypeValueReq{
			StartHandle: p.start,
			EndHandle:   p.end,
			AttrType:    bledefs.PrimarySvcUuid,
			AttrValue:   p.svcUuid,
		}

	case att.OP_READ_BY_TYPE_REQ:
		return &att.ReadByTypeReq{
			StartHandle: p.start,
			EndHandle:   p.end,
			AttrType:    bledefs.NewBleUuid16(bledefs.ChrDeclUuid),
		}

	default:
		return &att.FindInfoReq{
			StartHandle: p.start,
			EndHandle:   p.end,
		}
	}
}

func (c *Client) tx(p *proc) error {
	b := p.req().Bytes()
	gdxutil.AttLog.Debugf("Tx ATT (conn=%d)\n%s", p.connHandle, hex.Dump(b))

	if err := c.x.Tx(b); err != nil {
		return errors.Wrapf(err, "failed to send %s", att.OpString(p.reqOp))
	}

	return nil
}

func (c *Client) begin(p *proc) error {
	if p.start == 0 || p.start > p.end {
		return errors.Errorf("invalid handle range: %d-%d", p.start, p.end)
	}

	c.mtx.Lock()
	if c.proc != nil {
		c.mtx.Unlock()
		return gdxutil.NewBusyError(
			"GATT procedure already in progress")
	}
	c.proc = p
	c.mtx.Unlock()

	log.Debugf("gattc: starting %s %d-%d", att.OpString(p.reqOp),
		p.start, p.end)

	if err := c.tx(p); err != nil {
		c.mtx.Lock()
		c.proc = nil
		c.mtx.Unlock()
		return err
	}

	return nil
}

// Builds the record event for a successful response and returns the last
// handle it covers.
func recEvent(pdu att.Pdu) (*disc.RspEvent, uint16) {
	switch r := pdu.(type) {
	case *att.FindByTypeValueRsp:
		ranges := make([]disc.SvcRange, len(r.Infos))
		for i, info := range r.Infos {
			ranges[i] = disc.SvcRange{
				Start: info.Handle,
				End:   info.GrpEndHandle,
			}
		}
		ev := disc.NewSvcRangeEvent(disc.BLE_STATUS_SUCCESS, ranges...)
		return ev, r.Infos[len(r.Infos)-1].GrpEndHandle

	case *att.ReadByTypeRsp:
		recLen := int(r.Len)
		last := r.Data[len(r.Data)-recLen:]
		return &disc.RspEvent{
			Method:  disc.METHOD_READ_BY_TYPE_RSP,
			Status:  disc.BLE_STATUS_SUCCESS,
			NumRecs: len(r.Data) / recLen,
			RecLen:  recLen,
			Data:    r.Data,
		}, uint16(last[0]) | uint16(last[1])<<8

	case *att.FindInfoRsp:
		recLen := att.FindInfoRecLen(r.Format)
		last := r.Data[len(r.Data)-recLen:]
		return &disc.RspEvent{
			Method:  disc.METHOD_FIND_INFO_RSP,
			Status:  disc.BLE_STATUS_SUCCESS,
			NumRecs: len(r.Data) / recLen,
			RecLen:  recLen,
			Format:  int(r.Format),
			Data:    r.Data,
		}, uint16(last[0]) | uint16(last[1])<<8

	default:
		return nil, 0
	}
}

func (c *Client) emit(ev *disc.RspEvent) {
	log.Debugf("gattc: event %s", ev.String())

	c.mtx.Lock()
	cb := c.evCb
	c.mtx.Unlock()

	if cb != nil {
		cb(ev)
	}
}

func (c *Client) fail(err error) {
	log.Debugf("gattc: procedure aborted: %s", err.Error())

	c.mtx.Lock()
	cb := c.errCb
	c.mtx.Unlock()

	if cb != nil {
		cb(err)
	}
}

// rxGarbled ends the procedure in flight when an undecodable PDU carries
// its response (or error response) opcode.  Anything else is dropped.
func (c *Client) rxGarbled(b []byte) {
	if len(b) == 0 {
		return
	}

	c.mtx.Lock()
	p := c.proc
	if p == nil ||
		(b[0] != att.RspOpFor[p.reqOp] && b[0] != att.OP_ERROR_RSP) {

		c.mtx.Unlock()
		return
	}
	c.proc = nil
	c.mtx.Unlock()

	c.emit(disc.NewErrorEvent(disc.Method(p.reqOp), att.ERR_INVALID_PDU))
}

func (c *Client) rx(b []byte) {
	gdxutil.AttLog.Debugf("Rx ATT\n%s", hex.Dump(b))

	pdu, err := att.DecodePdu(b)
	if err != nil {
		log.Debugf("gattc: invalid PDU: %s", err.Error())
		c.rxGarbled(b)
		return
	}

	c.mtx.Lock()
	p := c.proc
	if p == nil {
		c.mtx.Unlock()
		log.Debugf("gattc: dropping unsolicited %s",
			att.OpString(pdu.Opcode()))
		return
	}

	if ersp, ok := pdu.(*att.ErrorRsp); ok {
		if ersp.ReqOp != p.reqOp {
			c.mtx.Unlock()
			log.Debugf("gattc: dropping error response to %s",
				att.OpString(ersp.ReqOp))
			return
		}

		c.proc = nil
		c.mtx.Unlock()

		if ersp.Code == att.ERR_ATTR_NOT_FOUND {
			c.emit(disc.NewCompleteEvent(p.rspMethod))
		} else {
			log.Debugf("gattc: %s", ersp.Err().Error())
			c.emit(disc.NewErrorEvent(disc.Method(p.reqOp), int(ersp.Code)))
		}
		return
	}

	if pdu.Opcode() != att.RspOpFor[p.reqOp] {
		c.mtx.Unlock()
		log.Debugf("gattc: dropping unexpected %s; in progress: %s",
			att.OpString(pdu.Opcode()), att.OpString(p.reqOp))
		return
	}

	ev, last := recEvent(pdu)

	// Continue after the last handle reported, unless that exhausts the
	// range or the peer failed to make progress.
	done := last >= p.end || last < p.start
	var next *proc
	if done {
		c.proc = nil
	} else {
		cp := *p
		cp.start = last + 1
		next = &cp
		c.proc = next
	}
	c.mtx.Unlock()

	c.emit(ev)

	if done {
		c.emit(disc.NewCompleteEvent(p.rspMethod))
		return
	}

	if err := c.tx(next); err != nil {
		c.mtx.Lock()
		if c.proc == next {
			c.proc = nil
		}
		c.mtx.Unlock()

		c.fail(err)
	}
}
