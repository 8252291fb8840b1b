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

package disc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
)

type testReq struct {
	method Method
	uuid   [16]byte
	start  uint16
	end    uint16
}

type testRequester struct {
	reqs []testReq
	err  error
}

func (r *testRequester) DiscSvcUuid(conn uint16, uuid [16]byte) error {
	if r.err != nil {
		return r.err
	}
	r.reqs = append(r.reqs, testReq{
		method: METHOD_FIND_BY_TYPE_VALUE_REQ,
		uuid:   uuid,
	})
	return nil
}

func (r *testRequester) DiscAllChrs(conn uint16, start uint16,
	end uint16) error {

	if r.err != nil {
		return r.err
	}
	r.reqs = append(r.reqs, testReq{
		method: METHOD_READ_BY_TYPE_REQ,
		start:  start,
		end:    end,
	})
	return nil
}

func (r *testRequester) DiscAllDscs(conn uint16, start uint16,
	end uint16) error {

	if r.err != nil {
		return r.err
	}
	r.reqs = append(r.reqs, testReq{
		method: METHOD_FIND_INFO_REQ,
		start:  start,
		end:    end,
	})
	return nil
}

func (r *testRequester) last() testReq {
	return r.reqs[len(r.reqs)-1]
}

var otherChrUuid = bledefs.MustParseUuid(
	"69D1D8F3-45E1-49A8-9821-9BBDFDAAD9D9")

func ancsDecl(decl uint16, val uint16) ChrDecl {
	return ChrDecl{
		DeclHandle: decl,
		Props:      bledefs.BLE_GATT_F_NOTIFY,
		ValHandle:  val,
		Uuid:       bledefs.MustParseUuid(bledefs.AncsNotifSrcChrUuid),
	}
}

func otherDecl(decl uint16, val uint16) ChrDecl {
	return ChrDecl{
		DeclHandle: decl,
		Props:      bledefs.BLE_GATT_F_WRITE,
		ValHandle:  val,
		Uuid:       otherChrUuid,
	}
}

func newTestDiscoverer(t *testing.T,
	targets ...Target) (*Discoverer, *testRequester) {

	if len(targets) == 0 {
		targets = []Target{AncsTarget()}
	}

	r := &testRequester{}
	d, err := NewDiscoverer(DiscCfg{ConnHandle: 1, Targets: targets}, r)
	require.NoError(t, err)

	return d, r
}

// Runs discovery up to the characteristic step with service range 10-20.
func startToChr(t *testing.T, d *Discoverer) DiscState {
	s := d.Start()
	s = d.OnEvent(s, NewSvcRangeEvent(BLE_STATUS_SUCCESS, SvcRange{10, 20}))
	s = d.OnEvent(s, NewCompleteEvent(METHOD_FIND_BY_TYPE_VALUE_RSP))
	require.Equal(t, activeState(0, DISC_STEP_CHR), s)
	return s
}

func TestStartIssuesSvcRequest(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := d.Start()
	assert.Equal(t, activeState(0, DISC_STEP_SVC), s)
	require.Len(t, r.reqs, 1)

	ancs := bledefs.MustParseUuid(bledefs.AncsSvcUuid)
	assert.Equal(t, METHOD_FIND_BY_TYPE_VALUE_REQ, r.reqs[0].method)
	assert.Equal(t, ancs.Wire128(), r.reqs[0].uuid)
}

func TestDescriptorDiscoveryAfterLastChr(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := startToChr(t, d)
	assert.Equal(t, testReq{
		method: METHOD_READ_BY_TYPE_REQ,
		start:  10,
		end:    20,
	}, r.last())

	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_SUCCESS, ancsDecl(12, 13)))
	assert.Equal(t, activeState(0, DISC_STEP_CHR), s)

	s = d.OnEvent(s, NewCompleteEvent(METHOD_READ_BY_TYPE_RSP))
	assert.Equal(t, activeState(0, DISC_STEP_DSC), s)

	assert.Equal(t, uint16(13), d.Cache().Get(0, HDL_CHR_START))
	assert.Equal(t, uint16(20), d.Cache().Get(0, HDL_CHR_END))
	assert.Equal(t, testReq{
		method: METHOD_FIND_INFO_REQ,
		start:  14,
		end:    20,
	}, r.last())
}

func TestSvcNotFound(t *testing.T) {
	tests := []struct {
		name string
		ev   *RspEvent
	}{
		{
			name: "proc complete",
			ev:   NewCompleteEvent(METHOD_FIND_BY_TYPE_VALUE_RSP),
		},
		{
			name: "attribute not found",
			ev:   NewErrorEvent(METHOD_FIND_BY_TYPE_VALUE_REQ, 0x0a),
		},
		{
			name: "error with unknown request",
			ev:   NewErrorEvent(METHOD_NONE, 0x0a),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, r := newTestDiscoverer(t)

			s := d.Start()
			s = d.OnEvent(s, tt.ev)

			assert.Equal(t, DiscStateFailed, s)
			assert.Len(t, r.reqs, 1)
			assert.Equal(t, HdlRow{}, d.Cache().Row(0))
		})
	}
}

func TestSvcRangeFirstMatchWins(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := d.Start()
	s = d.OnEvent(s, NewSvcRangeEvent(BLE_STATUS_SUCCESS,
		SvcRange{10, 20}, SvcRange{30, 40}))
	s = d.OnEvent(s, NewSvcRangeEvent(BLE_STATUS_SUCCESS, SvcRange{50, 60}))
	s = d.OnEvent(s, NewCompleteEvent(METHOD_FIND_BY_TYPE_VALUE_RSP))

	assert.Equal(t, activeState(0, DISC_STEP_CHR), s)
	assert.Equal(t, uint16(10), r.last().start)
	assert.Equal(t, uint16(20), r.last().end)
}

func TestSvcRangeWithCompleteStatus(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := d.Start()
	s = d.OnEvent(s, NewSvcRangeEvent(BLE_STATUS_PROC_COMPLETE,
		SvcRange{10, 20}))

	assert.Equal(t, activeState(0, DISC_STEP_CHR), s)
	assert.Equal(t, METHOD_READ_BY_TYPE_REQ, r.last().method)
}

func TestChrEndFallsBackToSvcEnd(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := startToChr(t, d)
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_SUCCESS,
		otherDecl(12, 13), ancsDecl(14, 15)))
	s = d.OnEvent(s, NewCompleteEvent(METHOD_READ_BY_TYPE_RSP))

	assert.Equal(t, activeState(0, DISC_STEP_DSC), s)
	assert.Equal(t, uint16(15), d.Cache().Get(0, HDL_CHR_START))
	assert.Equal(t, uint16(20), d.Cache().Get(0, HDL_CHR_END))
	assert.Equal(t, testReq{
		method: METHOD_FIND_INFO_REQ,
		start:  16,
		end:    20,
	}, r.last())
}

func TestChrEndResolvedByNextDecl(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := startToChr(t, d)

	// The next declaration arrives in a later response.
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_SUCCESS,
		otherDecl(11, 12), ancsDecl(13, 14)))
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_SUCCESS, otherDecl(17, 18)))
	s = d.OnEvent(s, NewCompleteEvent(METHOD_READ_BY_TYPE_RSP))

	assert.Equal(t, activeState(0, DISC_STEP_DSC), s)
	assert.Equal(t, uint16(14), d.Cache().Get(0, HDL_CHR_START))
	assert.Equal(t, uint16(16), d.Cache().Get(0, HDL_CHR_END))
	assert.Equal(t, testReq{
		method: METHOD_FIND_INFO_REQ,
		start:  15,
		end:    16,
	}, r.last())
}

func TestMandatoryChrMissing(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := startToChr(t, d)
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_SUCCESS, otherDecl(12, 13)))
	s = d.OnEvent(s, NewErrorEvent(METHOD_READ_BY_TYPE_REQ, 0x0a))

	assert.Equal(t, DiscStateFailed, s)
	assert.Len(t, r.reqs, 2)
	assert.Equal(t, HdlRow{}, d.Cache().Row(0))
}

func TestNoDescriptors(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := startToChr(t, d)

	// Value handle 13 is immediately followed by the next declaration.
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_SUCCESS,
		ancsDecl(12, 13), otherDecl(14, 15)))
	s = d.OnEvent(s, NewCompleteEvent(METHOD_READ_BY_TYPE_RSP))

	assert.Equal(t, DiscStateIdle, s)
	assert.Len(t, r.reqs, 2)
	assert.Equal(t, uint16(13), d.Cache().Get(0, HDL_CHR_START))
	assert.Equal(t, uint16(13), d.Cache().Get(0, HDL_CHR_END))
	assert.Equal(t, uint16(0), d.Cache().Get(0, HDL_CCCD))
}

func TestCccdFirstMatch(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := startToChr(t, d)
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_PROC_COMPLETE,
		ancsDecl(14, 15)))
	require.Equal(t, activeState(0, DISC_STEP_DSC), s)

	s = d.OnEvent(s, NewDscPairEvent(BLE_STATUS_SUCCESS,
		DscPair{16, bledefs.CccdUuid},
		DscPair{18, bledefs.CccdUuid}))
	assert.Equal(t, activeState(0, DISC_STEP_DSC), s)
	assert.Equal(t, uint16(16), d.Cache().Get(0, HDL_CCCD))

	s = d.OnEvent(s, NewCompleteEvent(METHOD_FIND_INFO_RSP))
	assert.Equal(t, DiscStateIdle, s)
	assert.Equal(t, HdlRow{15, 20, 16}, d.Cache().Row(0))
	assert.Len(t, r.reqs, 3)
}

func TestCccdAbsentIsSuccess(t *testing.T) {
	d, _ := newTestDiscoverer(t)

	s := startToChr(t, d)
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_PROC_COMPLETE,
		ancsDecl(14, 15)))
	s = d.OnEvent(s, NewDscPairEvent(BLE_STATUS_SUCCESS,
		DscPair{16, 0x2901}))
	s = d.OnEvent(s, NewErrorEvent(METHOD_FIND_INFO_REQ, 0x0a))

	assert.Equal(t, DiscStateIdle, s)
	assert.Equal(t, HdlRow{15, 20, 0}, d.Cache().Row(0))
}

func TestMalformedResponsesIgnored(t *testing.T) {
	wrongLen := NewChrDeclEvent(BLE_STATUS_SUCCESS, ancsDecl(12, 13))
	wrongLen.RecLen = CHR_DECL_UUID16_LEN

	shortData := NewSvcRangeEvent(BLE_STATUS_SUCCESS, SvcRange{10, 20})
	shortData.Data = shortData.Data[:3]

	badCount := NewDscPairEvent(BLE_STATUS_SUCCESS,
		DscPair{16, bledefs.CccdUuid})
	badCount.NumRecs = 2

	fmt128 := NewDscPairEvent(BLE_STATUS_SUCCESS,
		DscPair{16, bledefs.CccdUuid})
	fmt128.Format = FIND_INFO_FMT_128

	uuid16 := NewChrDeclEvent(BLE_STATUS_SUCCESS, ChrDecl{
		DeclHandle: 12,
		ValHandle:  13,
		Uuid:       bledefs.NewBleUuid16(0x2a19),
	})

	evs := []*RspEvent{
		nil,
		{Method: METHOD_FIND_BY_TYPE_VALUE_RSP},
		{Method: METHOD_READ_BY_TYPE_RSP},
		{Method: METHOD_FIND_INFO_RSP},
		wrongLen,
		shortData,
		badCount,
		fmt128,
		uuid16,
		NewErrorEvent(METHOD_READ_BY_TYPE_REQ+0x10, 0x0a),
	}

	// Brings a fresh discoverer to each non-terminal step.
	setups := map[DiscStep]func(t *testing.T, d *Discoverer) DiscState{
		DISC_STEP_SVC: func(t *testing.T, d *Discoverer) DiscState {
			return d.Start()
		},
		DISC_STEP_CHR: func(t *testing.T, d *Discoverer) DiscState {
			return startToChr(t, d)
		},
		DISC_STEP_DSC: func(t *testing.T, d *Discoverer) DiscState {
			s := startToChr(t, d)
			return d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_PROC_COMPLETE,
				ancsDecl(14, 15)))
		},
	}

	for step, setup := range setups {
		for i, ev := range evs {
			t.Run(fmt.Sprintf("%s/%d", step, i), func(t *testing.T) {
				d, r := newTestDiscoverer(t)
				s := setup(t, d)
				require.Equal(t, step, s.Step)

				numReqs := len(r.reqs)
				row := d.Cache().Row(0)

				next := d.OnEvent(s, ev)
				assert.Equal(t, s, next)
				assert.Len(t, r.reqs, numReqs)
				assert.Equal(t, row, d.Cache().Row(0))
			})
		}
	}
}

func TestTerminalStatesAbsorbEvents(t *testing.T) {
	evs := []*RspEvent{
		NewSvcRangeEvent(BLE_STATUS_PROC_COMPLETE, SvcRange{10, 20}),
		NewChrDeclEvent(BLE_STATUS_PROC_COMPLETE, ancsDecl(12, 13)),
		NewDscPairEvent(BLE_STATUS_PROC_COMPLETE,
			DscPair{16, bledefs.CccdUuid}),
		NewErrorEvent(METHOD_NONE, 0x0a),
	}

	for _, state := range []DiscState{DiscStateIdle, DiscStateFailed} {
		d, r := newTestDiscoverer(t)

		for _, ev := range evs {
			assert.Equal(t, state, d.OnEvent(state, ev))
		}
		assert.Empty(t, r.reqs)
		assert.Equal(t, HdlRow{}, d.Cache().Row(0))
	}
}

func TestLateEventsFromPreviousStep(t *testing.T) {
	d, r := newTestDiscoverer(t)

	s := startToChr(t, d)

	// Leftover service-step traffic must not complete the chr step.
	s = d.OnEvent(s, NewSvcRangeEvent(BLE_STATUS_PROC_COMPLETE,
		SvcRange{30, 40}))
	s = d.OnEvent(s, NewErrorEvent(METHOD_FIND_BY_TYPE_VALUE_REQ, 0x0a))
	assert.Equal(t, activeState(0, DISC_STEP_CHR), s)
	assert.Len(t, r.reqs, 2)

	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_PROC_COMPLETE,
		ancsDecl(12, 13)))
	assert.Equal(t, activeState(0, DISC_STEP_DSC), s)
	assert.Equal(t, testReq{
		method: METHOD_FIND_INFO_REQ,
		start:  14,
		end:    20,
	}, r.last())
}

func TestRequestErrorFails(t *testing.T) {
	d, r := newTestDiscoverer(t)
	r.err = fmt.Errorf("bearer down")

	s := d.Start()
	assert.Equal(t, DiscStateFailed, s)
	assert.EqualError(t, d.ReqErr(), "bearer down")

	d, r = newTestDiscoverer(t)
	s = d.Start()
	s = d.OnEvent(s, NewSvcRangeEvent(BLE_STATUS_SUCCESS, SvcRange{10, 20}))

	r.err = fmt.Errorf("bearer down")
	s = d.OnEvent(s, NewCompleteEvent(METHOD_FIND_BY_TYPE_VALUE_RSP))
	assert.Equal(t, DiscStateFailed, s)
}

func TestStartResetsCache(t *testing.T) {
	d, _ := newTestDiscoverer(t)

	s := startToChr(t, d)
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_PROC_COMPLETE,
		ancsDecl(12, 13), otherDecl(14, 15)))
	require.Equal(t, DiscStateIdle, s)
	require.Equal(t, uint16(13), d.Cache().Get(0, HDL_CHR_START))

	s = d.Start()
	assert.Equal(t, activeState(0, DISC_STEP_SVC), s)
	assert.Equal(t, HdlRow{}, d.Cache().Row(0))
}

func batteryTarget(optional bool) Target {
	return Target{
		Name:     "battery",
		SvcUuid:  bledefs.NewBleUuid16(0x180f),
		ChrUuid:  bledefs.NewBleUuid16(0x2a19),
		Optional: optional,
	}
}

func TestMultiPhase(t *testing.T) {
	d, r := newTestDiscoverer(t, AncsTarget(), batteryTarget(false))

	s := startToChr(t, d)
	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_PROC_COMPLETE,
		ancsDecl(12, 13), otherDecl(14, 15)))

	// The second phase starts without waiting for another event.
	assert.Equal(t, activeState(1, DISC_STEP_SVC), s)
	batt := bledefs.NewBleUuid16(0x180f)
	assert.Equal(t, batt.Wire128(), r.last().uuid)

	s = d.OnEvent(s, NewSvcRangeEvent(BLE_STATUS_PROC_COMPLETE,
		SvcRange{30, 35}))
	require.Equal(t, activeState(1, DISC_STEP_CHR), s)

	s = d.OnEvent(s, NewChrDeclEvent(BLE_STATUS_PROC_COMPLETE, ChrDecl{
		DeclHandle: 31,
		Props:      bledefs.BLE_GATT_F_READ | bledefs.BLE_GATT_F_NOTIFY,
		ValHandle:  32,
		Uuid:       bledefs.NewBleUuid16(0x2a19),
	}))
	require.Equal(t, activeState(1, DISC_STEP_DSC), s)
	assert.Equal(t, testReq{
		method: METHOD_FIND_INFO_REQ,
		start:  33,
		end:    35,
	}, r.last())

	s = d.OnEvent(s, NewDscPairEvent(BLE_STATUS_PROC_COMPLETE,
		DscPair{33, bledefs.CccdUuid}))
	assert.Equal(t, DiscStateIdle, s)

	assert.Equal(t, HdlRow{13, 13, 0}, d.Cache().Row(0))
	assert.Equal(t, HdlRow{32, 35, 33}, d.Cache().Row(1))
}

func TestOptionalTargetSkipped(t *testing.T) {
	d, r := newTestDiscoverer(t, batteryTarget(true), AncsTarget())

	s := d.Start()
	s = d.OnEvent(s, NewErrorEvent(METHOD_FIND_BY_TYPE_VALUE_REQ, 0x0a))
	assert.Equal(t, activeState(1, DISC_STEP_SVC), s)
	assert.Len(t, r.reqs, 2)
	assert.Equal(t, HdlRow{}, d.Cache().Row(0))

	s = d.OnEvent(s, NewCompleteEvent(METHOD_FIND_BY_TYPE_VALUE_RSP))
	assert.Equal(t, DiscStateFailed, s)
}

func TestOptionalLastTargetEndsIdle(t *testing.T) {
	d, _ := newTestDiscoverer(t, batteryTarget(true))

	s := d.Start()
	s = d.OnEvent(s, NewSvcRangeEvent(BLE_STATUS_PROC_COMPLETE,
		SvcRange{30, 35}))
	s = d.OnEvent(s, NewCompleteEvent(METHOD_READ_BY_TYPE_RSP))

	assert.Equal(t, DiscStateIdle, s)
	assert.Equal(t, HdlRow{}, d.Cache().Row(0))
}

func TestNewDiscovererRejectsBadCfg(t *testing.T) {
	_, err := NewDiscoverer(DiscCfg{}, &testRequester{})
	assert.Error(t, err)

	_, err = NewDiscoverer(NewDiscCfg(), nil)
	assert.Error(t, err)

	_, err = NewDiscoverer(DiscCfg{Targets: []Target{{Name: "empty"}}},
		&testRequester{})
	assert.Error(t, err)
}
