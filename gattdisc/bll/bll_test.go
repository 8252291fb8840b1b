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
	"testing"
	"time"

	"github.com/JuulLabs-OSS/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
	"mynewt.apache.org/gattdisc/gdxact/disc"
	"mynewt.apache.org/gattdisc/gdxact/gdxutil"
)

// fakeClient answers discovery calls from fixed tables.  Unused ble.Client
// methods panic through the nil embedded interface.
type fakeClient struct {
	ble.Client

	svcs    []*ble.Service
	chrs    []*ble.Characteristic
	dscs    []*ble.Descriptor
	err     error
	block   chan struct{}
	discCh  chan struct{}
	linkCh  chan struct{}
	cancels int
	lastSvc *ble.Service
	lastChr *ble.Characteristic
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		discCh: make(chan struct{}),
		linkCh: make(chan struct{}),
	}
}

// wait blocks until the test releases the call or the link is torn down.
func (c *fakeClient) wait() {
	if c.block == nil {
		return
	}

	select {
	case <-c.block:
	case <-c.linkCh:
	}
}

func (c *fakeClient) DiscoverServices(
	filter []ble.UUID) ([]*ble.Service, error) {

	c.wait()
	return c.svcs, c.err
}

func (c *fakeClient) DiscoverCharacteristics(filter []ble.UUID,
	s *ble.Service) ([]*ble.Characteristic, error) {

	c.wait()
	c.lastSvc = s
	return c.chrs, c.err
}

func (c *fakeClient) DiscoverDescriptors(filter []ble.UUID,
	chr *ble.Characteristic) ([]*ble.Descriptor, error) {

	c.wait()
	c.lastChr = chr
	return c.dscs, c.err
}

func (c *fakeClient) ExchangeMTU(rxMTU int) (int, error) {
	return rxMTU, nil
}

func (c *fakeClient) CancelConnection() error {
	c.cancels++
	if c.cancels == 1 {
		close(c.linkCh)
	}
	return nil
}

func (c *fakeClient) Disconnected() <-chan struct{} {
	return c.discCh
}

type fixture struct {
	d     *BllDriver
	cln   *fakeClient
	evCh  chan *disc.RspEvent
	errCh chan error
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		cln:   newFakeClient(),
		evCh:  make(chan *disc.RspEvent, 16),
		errCh: make(chan error, 1),
	}

	f.d = NewBllDriver(NewDriverCfg())
	f.d.connect = func() (ble.Client, error) { return f.cln, nil }
	f.d.stopDev = func() error { return nil }

	require.NoError(t, f.d.Start(
		func(ev *disc.RspEvent) { f.evCh <- ev },
		func(err error) { f.errCh <- err }))
	t.Cleanup(func() { f.d.Stop() })

	return f
}

func (f *fixture) procEvents(t *testing.T) []*disc.RspEvent {
	var evs []*disc.RspEvent
	for {
		select {
		case ev := <-f.evCh:
			evs = append(evs, ev)
			if ev.Status == disc.BLE_STATUS_PROC_COMPLETE ||
				ev.Method == disc.METHOD_ERROR_RSP {

				return evs
			}

		case <-time.After(2 * time.Second):
			t.Fatalf("procedure did not complete; have %d events", len(evs))
			return nil
		}
	}
}

func TestDiscSvcUuid(t *testing.T) {
	f := newFixture(t)

	ancs := bledefs.MustParseUuid(bledefs.AncsSvcUuid)
	f.cln.svcs = []*ble.Service{
		{UUID: ble.UUID16(0x180f), Handle: 10, EndHandle: 13},
		{UUID: BllUuidFromUuid(ancs), Handle: 14, EndHandle: 22},
	}

	require.NoError(t, f.d.DiscSvcUuid(0, ancs.Wire128()))
	evs := f.procEvents(t)
	require.Len(t, evs, 2)

	assert.Equal(t, []disc.SvcRange{{Start: 14, End: 22}},
		disc.SvcRanges(evs[0]))
	assert.Equal(t, disc.NewCompleteEvent(disc.METHOD_FIND_BY_TYPE_VALUE_RSP),
		evs[1])
}

func TestDiscSvcUuidShortForm(t *testing.T) {
	f := newFixture(t)

	// The library may report a base-derived UUID in its long form.
	bat := bledefs.NewBleUuid16(0x180f)
	long := bledefs.BleUuid{U128: bat.To128()}
	f.cln.svcs = []*ble.Service{
		{UUID: BllUuidFromUuid(long), Handle: 10, EndHandle: 13},
	}

	require.NoError(t, f.d.DiscSvcUuid(0, bat.Wire128()))
	evs := f.procEvents(t)
	require.Len(t, evs, 2)
	assert.Equal(t, []disc.SvcRange{{Start: 10, End: 13}},
		disc.SvcRanges(evs[0]))
}

func TestDiscSvcUuidMissing(t *testing.T) {
	f := newFixture(t)

	ancs := bledefs.MustParseUuid(bledefs.AncsSvcUuid)
	require.NoError(t, f.d.DiscSvcUuid(0, ancs.Wire128()))

	evs := f.procEvents(t)
	require.Len(t, evs, 1)
	assert.Equal(t, disc.BLE_STATUS_PROC_COMPLETE, evs[0].Status)
	assert.Equal(t, 0, evs[0].NumRecs)
}

func TestDiscAllChrsMixedWidths(t *testing.T) {
	f := newFixture(t)

	notif := bledefs.MustParseUuid(bledefs.AncsNotifSrcChrUuid)
	f.cln.chrs = []*ble.Characteristic{
		{UUID: ble.UUID16(0x2a19), Property: ble.CharNotify,
			Handle: 15, ValueHandle: 16},
		{UUID: BllUuidFromUuid(notif), Property: ble.CharNotify,
			Handle: 18, ValueHandle: 19},
	}

	require.NoError(t, f.d.DiscAllChrs(0, 14, 22))
	evs := f.procEvents(t)
	require.Len(t, evs, 3)

	assert.Equal(t, uint16(14), f.cln.lastSvc.Handle)
	assert.Equal(t, uint16(22), f.cln.lastSvc.EndHandle)

	d16 := disc.ChrDecls(evs[0], disc.CHR_DECL_UUID16_LEN)
	require.Len(t, d16, 1)
	assert.Equal(t, uint16(16), d16[0].ValHandle)
	assert.Equal(t, bledefs.BLE_GATT_F_NOTIFY, d16[0].Props)

	d128 := disc.ChrDecls(evs[1], disc.CHR_DECL_UUID128_LEN)
	require.Len(t, d128, 1)
	assert.Equal(t, uint16(18), d128[0].DeclHandle)
	assert.Equal(t, 0, bledefs.CompareUuids(notif, d128[0].Uuid))

	assert.Equal(t, disc.BLE_STATUS_PROC_COMPLETE, evs[2].Status)
}

func TestDiscAllDscs(t *testing.T) {
	f := newFixture(t)

	f.cln.dscs = []*ble.Descriptor{
		{UUID: ble.UUID16(0x2901), Handle: 17},
		{UUID: ble.MustParse(bledefs.AncsDataSrcChrUuid), Handle: 18},
		{UUID: ble.UUID16(bledefs.CccdUuid), Handle: 19},
	}

	require.NoError(t, f.d.DiscAllDscs(0, 17, 20))
	evs := f.procEvents(t)
	require.Len(t, evs, 2)

	assert.Equal(t, uint16(16), f.cln.lastChr.ValueHandle)
	assert.Equal(t, uint16(20), f.cln.lastChr.EndHandle)
	assert.Equal(t, []disc.DscPair{
		{Handle: 17, Uuid: 0x2901},
		{Handle: 19, Uuid: bledefs.CccdUuid},
	}, disc.DscPairs(evs[0]))
}

func TestAttErrors(t *testing.T) {
	f := newFixture(t)

	f.cln.err = ble.ErrAttrNotFound
	require.NoError(t, f.d.DiscAllDscs(0, 17, 20))
	evs := f.procEvents(t)
	require.Len(t, evs, 1)
	assert.Equal(t, disc.NewCompleteEvent(disc.METHOD_FIND_INFO_RSP), evs[0])

	f.cln.err = ble.ErrReadNotPerm
	require.NoError(t, f.d.DiscAllChrs(0, 14, 22))
	evs = f.procEvents(t)
	require.Len(t, evs, 1)
	assert.Equal(t,
		disc.NewErrorEvent(disc.METHOD_READ_BY_TYPE_REQ, int(ble.ErrReadNotPerm)),
		evs[0])
}

func TestLinkError(t *testing.T) {
	f := newFixture(t)

	f.cln.err = gdxutil.NewXportError("hci timeout")
	require.NoError(t, f.d.DiscAllChrs(0, 14, 22))

	select {
	case err := <-f.errCh:
		assert.Contains(t, err.Error(), "hci timeout")
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
	assert.Empty(t, f.evCh)
}

func TestSingleFlightAndCancel(t *testing.T) {
	f := newFixture(t)
	f.cln.block = make(chan struct{})

	require.NoError(t, f.d.DiscAllChrs(0, 14, 22))
	err := f.d.DiscAllDscs(0, 17, 20)
	assert.True(t, gdxutil.IsBusy(err))

	f.d.Cancel()
	require.NoError(t, f.d.DiscAllDscs(0, 17, 20))

	// Both calls return; only the second is reported.
	close(f.cln.block)
	evs := f.procEvents(t)
	require.Len(t, evs, 1)
	assert.Equal(t, disc.METHOD_FIND_INFO_RSP, evs[0].Method)

	select {
	case ev := <-f.evCh:
		t.Fatalf("unexpected event: %s", ev.String())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	f.cln.block = make(chan struct{})

	require.NoError(t, f.d.DiscAllChrs(0, 14, 22))
	close(f.cln.discCh)

	select {
	case err := <-f.errCh:
		assert.True(t, gdxutil.IsXport(err))
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}

	close(f.cln.block)
	err := f.d.DiscAllChrs(0, 14, 22)
	assert.True(t, gdxutil.IsXport(err))
}

func TestStopWithProcInFlight(t *testing.T) {
	f := newFixture(t)
	f.cln.block = make(chan struct{})

	ancs := bledefs.MustParseUuid(bledefs.AncsSvcUuid)
	require.NoError(t, f.d.DiscSvcUuid(0, ancs.Wire128()))

	stopped := make(chan error, 1)
	go func() { stopped <- f.d.Stop() }()

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an in-flight procedure")
	}
	assert.Equal(t, 1, f.cln.cancels)

	// The aborted procedure reports nothing.
	assert.Empty(t, f.evCh)
	assert.Empty(t, f.errCh)
}

func TestNotConnected(t *testing.T) {
	d := NewBllDriver(NewDriverCfg())
	assert.True(t, gdxutil.IsXport(d.DiscAllChrs(0, 1, 2)))
	assert.NoError(t, d.Stop())
}
