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

	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/gattdisc/gdxact/bledefs"
	"mynewt.apache.org/gattdisc/gdxact/gdserial"
	"mynewt.apache.org/newt/util"
)

var einvalSerialConnString = einvalFn("serial")

func ParseSerialConnString(cs string) (*gdserial.XportCfg, error) {
	sc := gdserial.NewXportCfg()
	if gdutil.Timeout > 0 {
		sc.ReadTimeout = gdutil.TimeoutDuration()
	}

	// A single token without '=' names the device file.
	kvs, err := splitConnString(cs, "dev", einvalSerialConnString)
	if err != nil {
		return nil, err
	}

	for _, kv := range kvs {
		switch kv.key {
		case "dev":
			sc.DevPath = kv.val

		case "baud":
			sc.Baud, err = cast.ToIntE(kv.val)
			if err != nil || sc.Baud <= 0 {
				return nil, einvalSerialConnString("Invalid baud: %s", kv.val)
			}

		case "mtu":
			sc.Mtu, err = cast.ToIntE(kv.val)
			if err != nil || sc.Mtu < bledefs.BLE_ATT_MTU_DFLT ||
				sc.Mtu > bledefs.BLE_ATT_MTU_MAX {

				return nil, einvalSerialConnString("Invalid mtu: %s", kv.val)
			}

		default:
			return nil, einvalSerialConnString("Unrecognized key: %s", kv.key)
		}
	}

	if sc.DevPath == "" {
		return nil, einvalSerialConnString("missing dev")
	}

	return sc, nil
}

func BuildSerialXport(sc *gdserial.XportCfg) (*gdserial.SerialXport, error) {
	if sc == nil {
		return nil, util.NewNewtError("nil serial config")
	}

	return gdserial.NewSerialXport(sc), nil
}
