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

package bll

import (
	"fmt"
	"sync"

	"github.com/JuulLabs-OSS/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/gattdisc/gdxact/bledefs"
	"mynewt.apache.org/gattdisc/gdxact/disc"
	"mynewt.apache.org/gattdisc/gdxact/gdxutil"
)

// BllDriver performs discovery through the host's own GATT client.  Each
// library call is replayed as the record and completion events a raw ATT
// client would have produced.
type BllDriver struct {
	cfg DriverCfg

	// Replaced in tests.
	connect func() (ble.Client, error)
	stopDev func() error

	mtx   sync.Mutex
	cln   ble.Client
	evCb  disc.EventFn
	errCb func(err error)
	busy  bool

	// Incremented on cancel; results of older procedures are dropped.
	gen uint64
	wg  sync.WaitGroup
}

func NewBllDriver(cfg DriverCfg) *BllDriver {
	d := &BllDriver{
		cfg: cfg,
	}
	d.connect = d.txConnect
	d.stopDev = ble.Stop

	return d
}

func (d *BllDriver) txConnect() (ble.Client, error) {
	if d.cfg.AdvFilter == nil {
		return nil, fmt.Errorf("BLE driver lacks a peer specifier")
	}

	dev, err := newDevice(d.cfg)
	if err != nil {
		return nil, err
	}
	ble.SetDefaultDevice(dev)

	tries := d.cfg.ConnTries
	if tries < 1 {
		tries = 1
	}

	for i := 0; ; i++ {
		ctx := ble.WithSigHandler(context.WithTimeout(context.Background(),
			d.cfg.ConnTimeout))

		cln, err := ble.Connect(ctx, d.cfg.AdvFilter)
		if err == nil {
			return cln, nil
		}

		if gdutil.ErrorCausedBy(err, context.DeadlineExceeded) {
			err = fmt.Errorf("Failed to connect to peer after %s",
				d.cfg.ConnTimeout.String())
		}
		if i+1 >= tries {
			ble.Stop()
			return nil, err
		}

		log.Debugf("bll: connect attempt %d failed: %s", i+1, err.Error())
	}
}

func (d *BllDriver) Start(evCb disc.EventFn, errCb func(err error)) error {
	d.mtx.Lock()
	if d.cln != nil {
		d.mtx.Unlock()
		return gdxutil.NewSesnAlreadyOpenError(
			"Attempt to start an already-connected BLE driver")
	}
	d.evCb = evCb
	d.errCb = errCb
	d.mtx.Unlock()

	cln, err := d.connect()
	if err != nil {
		return errors.Wrap(err, "failed to connect")
	}

	if d.cfg.PreferredMtu > bledefs.BLE_ATT_MTU_DFLT {
		if _, err := exchangeMtu(cln, d.cfg.PreferredMtu); err != nil {
			log.Debugf("bll: MTU exchange failed: %s", err.Error())
		}
	}

	d.mtx.Lock()
	d.cln = cln
	d.mtx.Unlock()

	go d.listenDisconnect(cln)

	return nil
}

func (d *BllDriver) listenDisconnect(cln ble.Client) {
	<-cln.Disconnected()

	d.mtx.Lock()
	if d.cln != cln {
		// Closed locally.
		d.mtx.Unlock()
		return
	}
	d.cln = nil
	busy := d.busy
	d.busy = false
	d.gen++
	errCb := d.errCb
	d.mtx.Unlock()

	log.Debugf("bll: peer disconnected")
	if busy && errCb != nil {
		errCb(gdxutil.NewXportError("peer disconnected"))
	}
}

func (d *BllDriver) Stop() error {
	d.mtx.Lock()
	cln := d.cln
	d.cln = nil
	d.busy = false
	d.gen++
	d.mtx.Unlock()

	if cln == nil {
		d.wg.Wait()
		return nil
	}

	// An in-flight procedure only returns once the link is gone.
	if err := cln.CancelConnection(); err != nil {
		log.Debugf("bll: cancel connection: %s", err.Error())
	}
	d.wg.Wait()

	return d.stopDev()
}

func (d *BllDriver) Cancel() {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.busy {
		log.Debugf("bll: cancelling procedure")
	}
	d.busy = false
	d.gen++
}

type procFn func(cln ble.Client) ([]*disc.RspEvent, error)

// Runs fn on its own goroutine and reports its outcome as events.
func (d *BllDriver) begin(rspMethod disc.Method, reqMethod disc.Method,
	fn procFn) error {

	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.cln == nil {
		return gdxutil.NewXportError("BLE driver not connected")
	}
	if d.busy {
		return gdxutil.NewBusyError("procedure already in progress")
	}

	d.busy = true
	gen := d.gen
	cln := d.cln

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		evs, err := fn(cln)
		d.finish(gen, rspMethod, reqMethod, evs, err)
	}()

	return nil
}

func (d *BllDriver) finish(gen uint64, rspMethod disc.Method,
	reqMethod disc.Method, evs []*disc.RspEvent, err error) {

	d.mtx.Lock()
	if gen != d.gen {
		d.mtx.Unlock()
		log.Debugf("bll: dropping result of cancelled %s", reqMethod)
		return
	}
	d.busy = false
	evCb := d.evCb
	errCb := d.errCb
	d.mtx.Unlock()

	if err != nil {
		attErr, ok := errors.Cause(err).(ble.ATTError)
		if !ok {
			if errCb != nil {
				errCb(errors.Wrapf(err, "%s failed", reqMethod))
			}
			return
		}

		if attErr != ble.ErrAttrNotFound {
			evs = append(evs, disc.NewErrorEvent(reqMethod, int(attErr)))
			d.emit(evCb, evs)
			return
		}
	}

	evs = append(evs, disc.NewCompleteEvent(rspMethod))
	d.emit(evCb, evs)
}

func (d *BllDriver) emit(evCb disc.EventFn, evs []*disc.RspEvent) {
	if evCb == nil {
		return
	}

	for _, ev := range evs {
		evCb(ev)
	}
}

func (d *BllDriver) DiscSvcUuid(connHandle uint16, uuid [16]byte) error {
	bu, err := bledefs.BleUuidFromWire(uuid[:])
	if err != nil {
		return err
	}
	bu = bu.Shorten()

	return d.begin(disc.METHOD_FIND_BY_TYPE_VALUE_RSP,
		disc.METHOD_FIND_BY_TYPE_VALUE_REQ,
		func(cln ble.Client) ([]*disc.RspEvent, error) {
			svcs, err := cln.DiscoverServices(
				[]ble.UUID{BllUuidFromUuid(bu)})
			if err != nil {
				return nil, err
			}

			return svcRangeEvents(svcs, bu), nil
		})
}

func (d *BllDriver) DiscAllChrs(connHandle uint16, startHandle uint16,
	endHandle uint16) error {

	return d.begin(disc.METHOD_READ_BY_TYPE_RSP,
		disc.METHOD_READ_BY_TYPE_REQ,
		func(cln ble.Client) ([]*disc.RspEvent, error) {
			svc := &ble.Service{
				Handle:    startHandle,
				EndHandle: endHandle,
			}

			chrs, err := cln.DiscoverCharacteristics(nil, svc)
			if err != nil {
				return nil, err
			}

			return chrDeclEvents(chrs), nil
		})
}

func (d *BllDriver) DiscAllDscs(connHandle uint16, startHandle uint16,
	endHandle uint16) error {

	return d.begin(disc.METHOD_FIND_INFO_RSP,
		disc.METHOD_FIND_INFO_REQ,
		func(cln ble.Client) ([]*disc.RspEvent, error) {
			// The library searches from the handle after the value.
			chr := &ble.Characteristic{
				ValueHandle: startHandle - 1,
				EndHandle:   endHandle,
			}

			dscs, err := cln.DiscoverDescriptors(nil, chr)
			if err != nil {
				return nil, err
			}

			return dscPairEvents(dscs), nil
		})
}
