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
	"github.com/spf13/cast"

	"mynewt.apache.org/gattdisc/gdxact/attsim"
	"mynewt.apache.org/gattdisc/gdxact/bledefs"
)

// Simulated peer.  Without a profile file the peer presents the built-in
// ANCS profile.
type SimConfig struct {
	ProfilePath string
	Mtu         int
}

var einvalSimConnString = einvalFn("sim")

func ParseSimConnString(cs string) (*SimConfig, error) {
	sc := &SimConfig{
		Mtu: bledefs.BLE_ATT_MTU_DFLT,
	}

	kvs, err := splitConnString(cs, "profile", einvalSimConnString)
	if err != nil {
		return nil, err
	}

	for _, kv := range kvs {
		switch kv.key {
		case "profile":
			sc.ProfilePath = kv.val

		case "mtu":
			sc.Mtu, err = cast.ToIntE(kv.val)
			if err != nil || sc.Mtu < bledefs.BLE_ATT_MTU_DFLT ||
				sc.Mtu > bledefs.BLE_ATT_MTU_MAX {

				return nil, einvalSimConnString("Invalid mtu: %s", kv.val)
			}

		default:
			return nil, einvalSimConnString("Unrecognized key: %s", kv.key)
		}
	}

	return sc, nil
}

func BuildSimXport(sc *SimConfig) (*attsim.SimXport, error) {
	cfg := attsim.NewXportCfg()
	cfg.Mtu = sc.Mtu

	if sc.ProfilePath != "" {
		p, err := attsim.LoadProfile(sc.ProfilePath)
		if err != nil {
			return nil, err
		}
		cfg.Profile = p
	}

	return attsim.NewSimXport(cfg), nil
}
