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
	"runtime"
	"time"

	"github.com/JuulLabs-OSS/ble"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
	"mynewt.apache.org/gattdisc/gdxact/disc"
)

func exchangeMtu(cln ble.Client, preferredMtu uint16) (uint16, error) {
	log.Debugf("Exchanging MTU")

	// On macOS the exchange is performed by the OS; the library reports 23
	// until it has completed.
	var mtu int
	for i := 0; i < 3; i++ {
		var err error
		mtu, err = cln.ExchangeMTU(int(preferredMtu))
		if err != nil {
			return 0, err
		}

		if runtime.GOOS != "darwin" || mtu != bledefs.BLE_ATT_MTU_DFLT {
			break
		}

		log.Debugf("macOS reports an MTU of 23; wait and requery")
		time.Sleep(time.Second)
	}

	log.Debugf("Exchanged MTU; ATT MTU = %d", mtu)
	return uint16(mtu), nil
}

// The library stores UUIDs in wire (little-endian) order.
func UuidFromBllUuid(bllUuid ble.UUID) (bledefs.BleUuid, error) {
	return bledefs.BleUuidFromWire(bllUuid)
}

func BllUuidFromUuid(bu bledefs.BleUuid) ble.UUID {
	return ble.UUID(bu.ToWire())
}

// Converts the services matching uuid into one find-by-type-value record
// event.
func svcRangeEvents(svcs []*ble.Service, uuid bledefs.BleUuid) []*disc.RspEvent {
	var ranges []disc.SvcRange
	for _, s := range svcs {
		su, err := UuidFromBllUuid(s.UUID)
		if err != nil {
			log.Debugf("bll: skipping service with bad UUID: %s", err.Error())
			continue
		}

		// Compare in full 128-bit form; the library may report either.
		a := su.To128()
		b := uuid.To128()
		if a != b {
			continue
		}

		ranges = append(ranges, disc.SvcRange{
			Start: s.Handle,
			End:   s.EndHandle,
		})
	}

	if len(ranges) == 0 {
		return nil
	}
	return []*disc.RspEvent{
		disc.NewSvcRangeEvent(disc.BLE_STATUS_SUCCESS, ranges...),
	}
}

// Converts characteristic declarations into read-by-type record events.  A
// response carries declarations of a single UUID width, so a change of
// width starts a new event.
func chrDeclEvents(chrs []*ble.Characteristic) []*disc.RspEvent {
	var evs []*disc.RspEvent
	var cur []disc.ChrDecl
	curWidth := 0

	flush := func() {
		if len(cur) > 0 {
			evs = append(evs,
				disc.NewChrDeclEvent(disc.BLE_STATUS_SUCCESS, cur...))
			cur = nil
		}
	}

	for _, c := range chrs {
		cu, err := UuidFromBllUuid(c.UUID)
		if err != nil {
			log.Debugf("bll: skipping characteristic with bad UUID: %s",
				err.Error())
			continue
		}

		if w := cu.Width(); w != curWidth {
			flush()
			curWidth = w
		}

		cur = append(cur, disc.ChrDecl{
			DeclHandle: c.Handle,
			Props:      bledefs.BleChrProperties(c.Property),
			ValHandle:  c.ValueHandle,
			Uuid:       cu,
		})
	}
	flush()

	return evs
}

// Converts descriptors into a find-info record event.  Only 16-bit
// descriptor UUIDs are reported.
func dscPairEvents(dscs []*ble.Descriptor) []*disc.RspEvent {
	var pairs []disc.DscPair
	for _, d := range dscs {
		if len(d.UUID) != 2 {
			continue
		}

		du, _ := UuidFromBllUuid(d.UUID)
		pairs = append(pairs, disc.DscPair{
			Handle: d.Handle,
			Uuid:   du.U16,
		})
	}

	if len(pairs) == 0 {
		return nil
	}
	return []*disc.RspEvent{
		disc.NewDscPairEvent(disc.BLE_STATUS_SUCCESS, pairs...),
	}
}
