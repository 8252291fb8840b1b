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

package attsim

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/gattdisc/gdxact/att"
	"mynewt.apache.org/gattdisc/gdxact/xport"
)

type XportCfg struct {
	Profile Profile
	Mtu     int

	// Depth of the request queue.
	QueueLen int
}

func NewXportCfg() XportCfg {
	return XportCfg{
		Profile:  AncsProfile(),
		Mtu:      23,
		QueueLen: 16,
	}
}

// RspFilter may rewrite, drop or multiply the responses to a request.
type RspFilter func(req att.Pdu, rsp []byte) [][]byte

// SimXport is a loopback bearer: requests are answered by an in-memory
// database on a separate goroutine, as a remote peer would.
type SimXport struct {
	db *Database

	mtx    sync.Mutex
	reqCh  chan []byte
	stopCh chan struct{}
	wg     sync.WaitGroup
	active bool

	rxCb   xport.RxFn
	filter RspFilter
	txErr  error
	numTx  int
}

func NewSimXport(cfg XportCfg) *SimXport {
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 16
	}

	return &SimXport{
		db:    NewDatabase(cfg.Profile, cfg.Mtu),
		reqCh: make(chan []byte, cfg.QueueLen),
	}
}

func (sx *SimXport) Database() *Database {
	return sx.db
}

func (sx *SimXport) SetRxCb(cb xport.RxFn) {
	sx.mtx.Lock()
	defer sx.mtx.Unlock()

	sx.rxCb = cb
}

func (sx *SimXport) SetRspFilter(filter RspFilter) {
	sx.mtx.Lock()
	defer sx.mtx.Unlock()

	sx.filter = filter
}

// SetTxErr makes every subsequent Tx fail with err.  nil restores normal
// operation.
func (sx *SimXport) SetTxErr(err error) {
	sx.mtx.Lock()
	defer sx.mtx.Unlock()

	sx.txErr = err
}

// NumTx reports the number of requests accepted so far.
func (sx *SimXport) NumTx() int {
	sx.mtx.Lock()
	defer sx.mtx.Unlock()

	return sx.numTx
}

func (sx *SimXport) MtuOut() int {
	return sx.db.Mtu()
}

func (sx *SimXport) Start() error {
	sx.mtx.Lock()
	defer sx.mtx.Unlock()

	if sx.active {
		return fmt.Errorf("simulated transport started twice")
	}
	sx.active = true

	stopCh := make(chan struct{})
	sx.stopCh = stopCh

	sx.wg.Add(1)
	go func() {
		defer sx.wg.Done()

		for {
			select {
			case req := <-sx.reqCh:
				sx.serve(req)

			case <-stopCh:
				return
			}
		}
	}()

	return nil
}

func (sx *SimXport) Stop() error {
	sx.mtx.Lock()
	if !sx.active {
		sx.mtx.Unlock()
		return fmt.Errorf("simulated transport stopped twice")
	}
	sx.active = false
	close(sx.stopCh)
	sx.mtx.Unlock()

	sx.wg.Wait()

	// Discard requests that were never answered.
	for {
		select {
		case <-sx.reqCh:
		default:
			return nil
		}
	}
}

func (sx *SimXport) Tx(data []byte) error {
	sx.mtx.Lock()
	defer sx.mtx.Unlock()

	if !sx.active {
		return fmt.Errorf("simulated transport not started")
	}
	if sx.txErr != nil {
		return sx.txErr
	}

	select {
	case sx.reqCh <- append([]byte(nil), data...):
		sx.numTx++
		return nil
	default:
		return fmt.Errorf("simulated transport queue full")
	}
}

func (sx *SimXport) serve(req []byte) {
	rsp := sx.db.Handle(req).Bytes()

	sx.mtx.Lock()
	cb := sx.rxCb
	filter := sx.filter
	sx.mtx.Unlock()

	rsps := [][]byte{rsp}
	if filter != nil {
		pdu, err := att.DecodePdu(req)
		if err == nil {
			rsps = filter(pdu, rsp)
		}
	}

	if cb == nil {
		log.Debugf("attsim: no receiver; dropping response")
		return
	}

	for _, r := range rsps {
		cb(r)
	}
}
