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
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
)

type Dsc struct {
	Uuid bledefs.BleUuid
}

type Chr struct {
	Uuid  bledefs.BleUuid
	Props bledefs.BleChrProperties
	Dscs  []Dsc
}

type Svc struct {
	Uuid bledefs.BleUuid
	Chrs []Chr
}

// A GATT database layout.  Handles are assigned when a peer is built from
// the profile.
type Profile struct {
	Svcs []Svc
}

func cccd() Dsc {
	return Dsc{Uuid: bledefs.NewBleUuid16(bledefs.CccdUuid)}
}

func u16(u uint16) bledefs.BleUuid {
	return bledefs.NewBleUuid16(u)
}

// AncsProfile resembles the database of an iOS device: GAP, GATT, battery
// and the Apple Notification Center Service.
func AncsProfile() Profile {
	return Profile{
		Svcs: []Svc{
			{
				Uuid: u16(0x1800),
				Chrs: []Chr{
					{Uuid: u16(0x2a00), Props: bledefs.BLE_GATT_F_READ},
					{Uuid: u16(0x2a01), Props: bledefs.BLE_GATT_F_READ},
				},
			},
			{
				Uuid: u16(0x1801),
				Chrs: []Chr{
					{
						Uuid:  u16(0x2a05),
						Props: bledefs.BLE_GATT_F_INDICATE,
						Dscs:  []Dsc{cccd()},
					},
				},
			},
			{
				Uuid: u16(0x180f),
				Chrs: []Chr{
					{
						Uuid: u16(0x2a19),
						Props: bledefs.BLE_GATT_F_READ |
							bledefs.BLE_GATT_F_NOTIFY,
						Dscs: []Dsc{cccd()},
					},
				},
			},
			{
				Uuid: bledefs.MustParseUuid(bledefs.AncsSvcUuid),
				Chrs: []Chr{
					{
						Uuid:  bledefs.MustParseUuid(bledefs.AncsNotifSrcChrUuid),
						Props: bledefs.BLE_GATT_F_NOTIFY,
						Dscs:  []Dsc{cccd()},
					},
					{
						Uuid:  bledefs.MustParseUuid(bledefs.AncsCtrlPointChrUuid),
						Props: bledefs.BLE_GATT_F_WRITE,
					},
					{
						Uuid:  bledefs.MustParseUuid(bledefs.AncsDataSrcChrUuid),
						Props: bledefs.BLE_GATT_F_NOTIFY,
						Dscs:  []Dsc{cccd()},
					},
				},
			},
		},
	}
}

type yamlChr struct {
	Uuid  string   `yaml:"uuid"`
	Props []string `yaml:"props"`
	Dscs  []string `yaml:"descriptors"`
}

type yamlSvc struct {
	Uuid string    `yaml:"uuid"`
	Chrs []yamlChr `yaml:"characteristics"`
}

type yamlProfile struct {
	Svcs []yamlSvc `yaml:"services"`
}

func parseProps(names []string) (bledefs.BleChrProperties, error) {
	var props bledefs.BleChrProperties

outer:
	for _, name := range names {
		for bit, s := range bledefs.BleChrPropertiesStringMap {
			if s == name {
				props |= bit
				continue outer
			}
		}
		return 0, errors.Errorf("invalid characteristic property: %s", name)
	}

	return props, nil
}

// ParseProfile reads a profile in YAML form:
//
//	services:
//	  - uuid: 0x180f
//	    characteristics:
//	      - uuid: 0x2a19
//	        props: [read, notify]
//	        descriptors: [0x2902]
func ParseProfile(data []byte) (Profile, error) {
	var yp yamlProfile
	if err := yaml.Unmarshal(data, &yp); err != nil {
		return Profile{}, errors.Wrap(err, "invalid profile")
	}

	p := Profile{}
	for _, ys := range yp.Svcs {
		uuid, err := bledefs.ParseUuid(ys.Uuid)
		if err != nil {
			return Profile{}, err
		}
		svc := Svc{Uuid: uuid}

		for _, yc := range ys.Chrs {
			uuid, err := bledefs.ParseUuid(yc.Uuid)
			if err != nil {
				return Profile{}, err
			}
			props, err := parseProps(yc.Props)
			if err != nil {
				return Profile{}, err
			}
			chr := Chr{Uuid: uuid, Props: props}

			for _, yd := range yc.Dscs {
				uuid, err := bledefs.ParseUuid(yd)
				if err != nil {
					return Profile{}, err
				}
				chr.Dscs = append(chr.Dscs, Dsc{Uuid: uuid})
			}

			svc.Chrs = append(svc.Chrs, chr)
		}

		p.Svcs = append(p.Svcs, svc)
	}

	if len(p.Svcs) == 0 {
		return Profile{}, errors.New("profile contains no services")
	}

	return p, nil
}

func LoadProfile(path string) (Profile, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "failed to read profile %s", path)
	}

	return ParseProfile(data)
}
