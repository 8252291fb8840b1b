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

// Package gdserial carries ATT PDUs over a serial line using the mynewt
// newtmgr framing.
package gdserial

import (
	"bufio"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
	"mynewt.apache.org/gattdisc/gdxact/gdxutil"
	"mynewt.apache.org/gattdisc/gdxact/xport"
)

type XportCfg struct {
	DevPath     string
	Baud        int
	Mtu         int
	ReadTimeout time.Duration
}

func NewXportCfg() *XportCfg {
	return &XportCfg{
		Baud:        115200,
		ReadTimeout: 10 * time.Second,
		Mtu:         bledefs.BLE_ATT_MTU_DFLT,
	}
}

type SerialXport struct {
	cfg  *XportCfg
	port *serial.Port
	rxCb xport.RxFn

	wg sync.WaitGroup
	sync.Mutex
	closing bool
}

func NewSerialXport(cfg *XportCfg) *SerialXport {
	return &SerialXport{
		cfg: cfg,
	}
}

func (sx *SerialXport) SetRxCb(cb xport.RxFn) {
	sx.rxCb = cb
}

func (sx *SerialXport) MtuOut() int {
	return sx.cfg.Mtu
}

func (sx *SerialXport) Start() error {
	c := &serial.Config{
		Name:        sx.cfg.DevPath,
		Baud:        sx.cfg.Baud,
		ReadTimeout: sx.cfg.ReadTimeout,
	}

	port, err := serial.OpenPort(c)
	if err != nil {
		return gdxutil.FmtXportError("failed to open %s: %s",
			sx.cfg.DevPath, err.Error())
	}

	if err := port.Flush(); err != nil {
		port.Close()
		return errors.Wrapf(err, "failed to flush %s", sx.cfg.DevPath)
	}

	sx.Lock()
	sx.port = port
	sx.closing = false
	sx.Unlock()

	sx.wg.Add(1)
	go func() {
		defer sx.wg.Done()
		sx.rxLoop(port)
	}()

	return nil
}

func (sx *SerialXport) isClosing() bool {
	sx.Lock()
	defer sx.Unlock()

	return sx.closing
}

func (sx *SerialXport) rxLoop(port *serial.Port) {
	fd := &frameDecoder{}

	for !sx.isClosing() {
		// The scanner stops at EOF, which the port reports on every read
		// timeout.
		scanner := bufio.NewScanner(port)
		for scanner.Scan() {
			line := scanner.Bytes()
			log.Debugf("Rx serial:\n%s", hex.Dump(line))

			pdu, err := fd.Feed(line)
			if err != nil {
				log.Debugf("serial: %s", err.Error())
				continue
			}
			if pdu != nil && sx.rxCb != nil {
				sx.rxCb(pdu)
			}
		}

		if err := scanner.Err(); err != nil {
			if !sx.isClosing() {
				log.Debugf("serial read failed: %s", err.Error())
			}
			return
		}
	}
}

func (sx *SerialXport) Stop() error {
	sx.Lock()
	if sx.port == nil || sx.closing {
		sx.Unlock()
		return gdxutil.NewXportError("serial transport not started")
	}
	sx.closing = true
	port := sx.port
	sx.Unlock()

	err := port.Close()
	sx.wg.Wait()

	sx.Lock()
	sx.port = nil
	sx.Unlock()

	return err
}

func (sx *SerialXport) txRaw(port *serial.Port, b []byte) error {
	log.Debugf("Tx serial\n%s", hex.Dump(b))

	if _, err := port.Write(b); err != nil {
		return errors.Wrap(err, "serial write failed")
	}

	return nil
}

func (sx *SerialXport) Tx(pdu []byte) error {
	sx.Lock()
	port := sx.port
	closing := sx.closing
	sx.Unlock()

	if port == nil || closing {
		return gdxutil.NewXportError("serial transport not started")
	}

	if len(pdu) > sx.cfg.Mtu {
		return gdxutil.FmtXportError("PDU exceeds MTU: have=%d max=%d",
			len(pdu), sx.cfg.Mtu)
	}

	for i, seg := range EncodeFrame(pdu) {
		if i > 0 {
			// Slower peers have very small receive buffers.
			time.Sleep(20 * time.Millisecond)
		}
		if err := sx.txRaw(port, seg); err != nil {
			return err
		}
	}

	return nil
}
