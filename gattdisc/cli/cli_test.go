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

package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"

	"mynewt.apache.org/gattdisc/gattdisc/config"
	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/gattdisc/gdxact/sesn"
)

func testResult() *sesn.Result {
	return &sesn.Result{
		ConnHandle: 1,
		Tries:      1,
		Elapsed:    5 * time.Millisecond,
		Targets: []sesn.TargetResult{{
			Name:         "ancs",
			SvcUuid:      "7905f431-b5ce-4e99-a40f-4b1e122d00d0",
			ChrUuid:      "9fbf120d-6301-42d9-8c58-25e699a21dbd",
			Found:        true,
			ChrValHandle: 16,
			ChrEndHandle: 17,
			CccdHandle:   17,
		}},
	}
}

func TestResultText(t *testing.T) {
	b, err := formatResult(testResult(), "text")
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, "conn_handle=1 tries=1 elapsed=5ms\n")
	assert.Contains(t, s, "ancs\n")
	assert.Contains(t, s, "    chr_val_handle:  0x0010\n")
	assert.Contains(t, s, "    cccd_handle:     0x0011\n")
	assert.Contains(t, s, "    found:           true\n")
}

func TestResultJSONAndCBOR(t *testing.T) {
	b, err := formatResult(testResult(), "json")
	require.NoError(t, err)
	assert.Contains(t, string(b), `"chr_val_handle": 16`)

	b, err = formatResult(testResult(), "cbor")
	require.NoError(t, err)

	var res sesn.Result
	dec := codec.NewDecoderBytes(b, &codec.CborHandle{})
	require.NoError(t, dec.Decode(&res))
	assert.Equal(t, *testResult(), res)

	_, err = formatResult(testResult(), "xml")
	assert.Error(t, err)
}

func TestLogSubscriber(t *testing.T) {
	res := testResult()
	res.Targets = append(res.Targets, sesn.TargetResult{Name: "hrm"})

	assert.NoError(t, (&logSubscriber{}).Subscribe(res))
}

func withFlags(t *testing.T) {
	saved := []string{gdutil.ConnType, gdutil.ConnString, gdutil.ConnExtra,
		gdutil.ConnProfile, gdutil.TargetsFile}
	savedTargets := gdutil.Targets

	t.Cleanup(func() {
		gdutil.ConnType = saved[0]
		gdutil.ConnString = saved[1]
		gdutil.ConnExtra = saved[2]
		gdutil.ConnProfile = saved[3]
		gdutil.TargetsFile = saved[4]
		gdutil.Targets = savedTargets

		if globalSesn != nil {
			globalSesn.Close()
			globalSesn = nil
		}
	})
}

func TestConnTypeOverride(t *testing.T) {
	withFlags(t)

	gdutil.ConnType = "sim"
	gdutil.ConnString = "mtu=64"
	cp, err := getConnProfile()
	require.NoError(t, err)
	assert.Equal(t, config.CONN_TYPE_SIM, cp.Type)
	assert.Equal(t, "mtu=64", cp.ConnString)

	gdutil.ConnType = "carrier-pigeon"
	_, err = getConnProfile()
	assert.Error(t, err)

	gdutil.ConnType = ""
	gdutil.ConnProfile = ""
	_, err = getConnProfile()
	assert.Error(t, err)
}

func TestDiscoverSim(t *testing.T) {
	withFlags(t)

	gdutil.ConnType = "sim"
	gdutil.ConnString = ""
	gdutil.ConnExtra = "mtu=23"
	gdutil.Targets = []string{"name=bat,svc=0x180f,chr=0x2a19"}

	s, err := GetSesn()
	require.NoError(t, err)

	res, err := s.DiscoverTries(2*time.Second, 1)
	require.NoError(t, err)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, "bat", res.Targets[0].Name)
	assert.Equal(t, uint16(12), res.Targets[0].ChrValHandle)
	assert.Equal(t, uint16(13), res.Targets[0].CccdHandle)

	open, err := GetSesnIfOpen()
	require.NoError(t, err)
	assert.Equal(t, s, open)
}

func TestBuildDriverBadConnString(t *testing.T) {
	withFlags(t)

	for _, cp := range []*config.ConnProfile{
		{Type: config.CONN_TYPE_SERIAL, ConnString: "baud=9600"},
		{Type: config.CONN_TYPE_BLL, ConnString: ""},
		{Type: config.CONN_TYPE_SIM, ConnString: "mtu=1"},
		{Type: config.CONN_TYPE_NONE},
	} {
		_, err := buildDriver(cp)
		assert.Error(t, err, "profile %s", cp.String())
	}
}

func TestParseConnProfileArgs(t *testing.T) {
	cp, err := parseConnProfileArgs([]string{"usb", "type=serial",
		"connstring=dev=/dev/ttyUSB0,baud=9600"})
	require.NoError(t, err)
	assert.Equal(t, &config.ConnProfile{
		Name:       "usb",
		Type:       config.CONN_TYPE_SERIAL,
		ConnString: "dev=/dev/ttyUSB0,baud=9600",
	}, cp)

	cp, err = parseConnProfileArgs([]string{"local", "type=sim"})
	require.NoError(t, err)
	assert.Equal(t, config.CONN_TYPE_SIM, cp.Type)

	for _, args := range [][]string{
		nil,
		{"usb"},
		{"usb", "type=udp"},
		{"usb", "type=serial"},
		{"usb", "type=serial", "baud"},
		{"usb", "type=serial", "color=red"},
		{"phone", "type=ble", "connstring=peer_id=xyz"},
	} {
		_, err := parseConnProfileArgs(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestConnProfileText(t *testing.T) {
	list := []*config.ConnProfile{
		{Name: "local", Type: config.CONN_TYPE_SIM},
		{Name: "usb", Type: config.CONN_TYPE_SERIAL, ConnString: "/dev/ttyACM0"},
	}

	assert.Equal(t, "Connection profiles:\n"+
		"  local: type=sim, connstring=''\n"+
		"  usb: type=serial, connstring='/dev/ttyACM0'\n",
		connProfileText(list, nil))
	assert.Equal(t, "Connection profiles:\n"+
		"  usb: type=serial, connstring='/dev/ttyACM0'\n",
		connProfileText(list, []string{"usb"}))
	assert.Equal(t, "No connection profiles found matching ble\n",
		connProfileText(list, []string{"ble"}))
	assert.Equal(t, "No connection profiles found!\n",
		connProfileText(nil, nil))
}
