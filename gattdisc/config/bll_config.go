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

package config

import (
	"strings"
	"time"

	"github.com/JuulLabs-OSS/ble"
	"github.com/spf13/cast"

	"mynewt.apache.org/gattdisc/gattdisc/bll"
	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/gattdisc/gdxact/bledefs"
	"mynewt.apache.org/newt/util"
)

type BllConfig struct {
	OwnAddrType bledefs.BleAddrType
	PeerId      string
	PeerName    string
	Mtu         uint16

	// Connection timeout, in seconds.
	ConnTimeout float64

	HciIdx int
}

func NewBllConfig() *BllConfig {
	return &BllConfig{
		ConnTimeout: gdutil.Timeout,
		Mtu:         512,
	}
}

var einvalBllConnString = einvalFn("BLE")

func ParseBllConnString(cs string) (*BllConfig, error) {
	bc := NewBllConfig()

	kvs, err := splitConnString(cs, "", einvalBllConnString)
	if err != nil {
		return nil, err
	}

	for _, kv := range kvs {
		switch kv.key {
		case "own_addr_type":
			bc.OwnAddrType, err = bledefs.ParseBleAddrType(kv.val)
			if err != nil {
				return nil, einvalBllConnString("Invalid own_addr_type: %s",
					kv.val)
			}

		case "peer_id":
			if _, err := bledefs.ParseBleAddr(kv.val); err != nil {
				return nil, einvalBllConnString("Invalid peer_id: %s", kv.val)
			}
			bc.PeerId = kv.val

		case "peer_name":
			bc.PeerName = kv.val

		case "conn_timeout":
			bc.ConnTimeout, err = cast.ToFloat64E(kv.val)
			if err != nil || bc.ConnTimeout <= 0 {
				return nil, einvalBllConnString("Invalid conn_timeout: %s",
					kv.val)
			}

		case "mtu":
			bc.Mtu, err = cast.ToUint16E(kv.val)
			if err != nil || bc.Mtu < bledefs.BLE_ATT_MTU_DFLT {
				return nil, einvalBllConnString("Invalid mtu: %s", kv.val)
			}

		default:
			return nil, einvalBllConnString("Unrecognized key: %s", kv.key)
		}
	}

	bc.HciIdx = gdutil.HciIdx

	return bc, nil
}

func BuildBllDriverCfg(bc *BllConfig) (bll.DriverCfg, error) {
	dc := bll.NewDriverCfg()

	if bc.PeerName != "" {
		name := bc.PeerName
		dc.AdvFilter = func(a ble.Advertisement) bool {
			return a.LocalName() == name
		}
	} else if bc.PeerId != "" {
		id := bc.PeerId
		dc.AdvFilter = func(a ble.Advertisement) bool {
			return strings.EqualFold(a.Addr().String(), id)
		}
	} else {
		return dc, util.NewNewtError("BLE connection lacks a peer specifier")
	}

	dc.OwnAddrType = bc.OwnAddrType
	dc.PreferredMtu = bc.Mtu
	dc.HciIdx = bc.HciIdx
	if bc.ConnTimeout > 0 {
		dc.ConnTimeout = time.Duration(bc.ConnTimeout * float64(time.Second))
	}

	return dc, nil
}
