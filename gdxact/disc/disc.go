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

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
)

// Outcome of running one step of a phase.
type phaseRes int

const (
	PHASE_RES_PENDING phaseRes = iota
	PHASE_RES_DONE
	PHASE_RES_NOT_FOUND
	PHASE_RES_REQ_ERR
)

// Discoverer locates the handles of each configured target on one
// connection.  It is driven by a single dispatcher: Start, then OnEvent once
// per response event.  It is not safe for concurrent use.
type Discoverer struct {
	cfg   DiscCfg
	req   Requester
	cache *HdlCache

	// Service range found in the current phase.
	svcStart uint16
	svcEnd   uint16

	// Cache role whose end handle awaits the next declaration.
	endHdlIdx HdlIdx

	reqErr error
}

func NewDiscoverer(cfg DiscCfg, req Requester) (*Discoverer, error) {
	if req == nil {
		return nil, fmt.Errorf("discoverer requires a requester")
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("discoverer requires at least one target")
	}

	for i, t := range cfg.Targets {
		if t.SvcUuid.U16 == 0 && t.SvcUuid.U128 == (bledefs.BleUuid128{}) {
			return nil, fmt.Errorf("target %d (%s) has no service UUID",
				i, t.Name)
		}
		if t.ChrUuid.U16 == 0 && t.ChrUuid.U128 == (bledefs.BleUuid128{}) {
			return nil, fmt.Errorf(
				"target %d (%s) has no characteristic UUID", i, t.Name)
		}
	}

	return &Discoverer{
		cfg:       cfg,
		req:       req,
		cache:     NewHdlCache(len(cfg.Targets)),
		endHdlIdx: HDL_NONE,
	}, nil
}

// Cache holds final values only once discovery has reached a terminal
// state.
func (d *Discoverer) Cache() *HdlCache {
	return d.cache
}

// ReqErr returns the error that caused the most recent request failure, or
// nil if every request was accepted.
func (d *Discoverer) ReqErr() error {
	return d.reqErr
}

// Start clears the handle cache and issues the first request of the first
// phase.
func (d *Discoverer) Start() DiscState {
	d.cache.Reset()
	d.reqErr = nil

	return d.OnEvent(activeState(0, DISC_STEP_START), nil)
}

// OnEvent consumes one response event and returns the state that follows
// it.  At most one request is issued per phase step.  States whose step is
// DISC_STEP_START are run immediately, so the returned state is always
// terminal or awaiting a response.
func (d *Discoverer) OnEvent(state DiscState, ev *RspEvent) DiscState {
	for {
		if state.Kind != DISC_KIND_ACTIVE {
			return state
		}

		next := d.dispatch(state, ev)
		if next != state {
			log.Debugf("disc: %s -> %s", state, next)
		}
		state = next

		if state.Kind != DISC_KIND_ACTIVE || state.Step != DISC_STEP_START {
			return state
		}

		// The event has been consumed by the previous phase.
		ev = nil
	}
}

func (d *Discoverer) dispatch(state DiscState, ev *RspEvent) DiscState {
	if state.Phase < 0 || state.Phase >= len(d.cfg.Targets) {
		log.Debugf("disc: invalid phase %d", state.Phase)
		return DiscStateFailed
	}

	step, res := d.runStep(state.Phase, state.Step, ev)
	switch res {
	case PHASE_RES_PENDING:
		return activeState(state.Phase, step)

	case PHASE_RES_DONE:
		return d.nextPhase(state.Phase)

	case PHASE_RES_NOT_FOUND:
		t := &d.cfg.Targets[state.Phase]
		if t.Optional {
			log.Debugf("disc: optional target %s not found; skipping",
				t.String())
			d.cache.clearRow(state.Phase)
			return d.nextPhase(state.Phase)
		}
		log.Debugf("disc: target %s not found", t.String())
		return DiscStateFailed

	default:
		return DiscStateFailed
	}
}

func (d *Discoverer) nextPhase(phase int) DiscState {
	if phase+1 >= len(d.cfg.Targets) {
		return DiscStateIdle
	}
	return activeState(phase+1, DISC_STEP_START)
}

func (d *Discoverer) runStep(phase int, step DiscStep,
	ev *RspEvent) (DiscStep, phaseRes) {

	switch step {
	case DISC_STEP_START:
		return d.discSvc(phase)

	case DISC_STEP_SVC:
		return d.svcRsp(phase, ev)

	case DISC_STEP_CHR:
		return d.chrRsp(phase, ev)

	case DISC_STEP_DSC:
		return d.dscRsp(phase, ev)

	default:
		log.Debugf("disc: invalid step %d", int(step))
		return step, PHASE_RES_REQ_ERR
	}
}

// Indicates whether ev ends the procedure started by reqMethod, whose
// record responses have method rspMethod.  An error response is accepted
// as completion unless it names a different request.
func isComplete(ev *RspEvent, reqMethod Method, rspMethod Method) bool {
	if ev == nil {
		return false
	}

	if ev.Method == rspMethod && ev.Status == BLE_STATUS_PROC_COMPLETE {
		return true
	}

	if ev.Method == METHOD_ERROR_RSP {
		if ev.ReqMethod != METHOD_NONE && ev.ReqMethod != reqMethod {
			log.Debugf("disc: ignoring error response to %s", ev.ReqMethod)
			return false
		}
		return true
	}

	return false
}

func (d *Discoverer) reqFailed(err error) (DiscStep, phaseRes) {
	log.Debugf("disc: request failed: %s", err.Error())
	d.reqErr = err
	return DISC_STEP_START, PHASE_RES_REQ_ERR
}

func (d *Discoverer) discSvc(phase int) (DiscStep, phaseRes) {
	t := &d.cfg.Targets[phase]

	d.svcStart = 0
	d.svcEnd = 0
	d.endHdlIdx = HDL_NONE

	if err := d.req.DiscSvcUuid(d.cfg.ConnHandle, t.SvcUuid.Wire128()); err != nil {
		return d.reqFailed(err)
	}

	return DISC_STEP_SVC, PHASE_RES_PENDING
}

func (d *Discoverer) svcRsp(phase int, ev *RspEvent) (DiscStep, phaseRes) {
	// First match wins.
	if ranges := SvcRanges(ev); len(ranges) > 0 && d.svcStart == 0 {
		d.svcStart = ranges[0].Start
		d.svcEnd = ranges[0].End
		log.Debugf("disc: service range %d-%d", d.svcStart, d.svcEnd)
	}

	if !isComplete(ev, METHOD_FIND_BY_TYPE_VALUE_REQ,
		METHOD_FIND_BY_TYPE_VALUE_RSP) {

		return DISC_STEP_SVC, PHASE_RES_PENDING
	}

	if d.svcStart == 0 {
		return DISC_STEP_SVC, PHASE_RES_NOT_FOUND
	}

	if err := d.req.DiscAllChrs(d.cfg.ConnHandle,
		d.svcStart, d.svcEnd); err != nil {

		return d.reqFailed(err)
	}

	return DISC_STEP_CHR, PHASE_RES_PENDING
}

func (d *Discoverer) chrRsp(phase int, ev *RspEvent) (DiscStep, phaseRes) {
	t := &d.cfg.Targets[phase]

	for _, decl := range ChrDecls(ev, t.ChrUuid.Width()) {
		// The previous characteristic of interest ends just before this
		// declaration.
		if d.endHdlIdx != HDL_NONE {
			d.cache.set(phase, d.endHdlIdx, decl.DeclHandle-1)
			d.endHdlIdx = HDL_NONE
		}

		if bledefs.CompareUuids(decl.Uuid, t.ChrUuid) == 0 {
			log.Debugf("disc: found chr %s; val_handle=%d",
				t.ChrUuid.String(), decl.ValHandle)
			d.cache.set(phase, HDL_CHR_START, decl.ValHandle)
			d.endHdlIdx = HDL_CHR_END
		}
	}

	if !isComplete(ev, METHOD_READ_BY_TYPE_REQ, METHOD_READ_BY_TYPE_RSP) {
		return DISC_STEP_CHR, PHASE_RES_PENDING
	}

	// Characteristic of interest is the last one in the service.
	if d.endHdlIdx != HDL_NONE {
		d.cache.set(phase, d.endHdlIdx, d.svcEnd)
		d.endHdlIdx = HDL_NONE
	}

	start := d.cache.Get(phase, HDL_CHR_START)
	end := d.cache.Get(phase, HDL_CHR_END)

	if start == 0 {
		return DISC_STEP_CHR, PHASE_RES_NOT_FOUND
	}

	if start >= end {
		// No room for descriptors.
		return DISC_STEP_CHR, PHASE_RES_DONE
	}

	if err := d.req.DiscAllDscs(d.cfg.ConnHandle, start+1, end); err != nil {
		return d.reqFailed(err)
	}

	return DISC_STEP_DSC, PHASE_RES_PENDING
}

func (d *Discoverer) dscRsp(phase int, ev *RspEvent) (DiscStep, phaseRes) {
	for _, p := range DscPairs(ev) {
		if p.Uuid == bledefs.CccdUuid {
			log.Debugf("disc: found cccd; handle=%d", p.Handle)
			d.cache.set(phase, HDL_CCCD, p.Handle)
			break
		}
	}

	if !isComplete(ev, METHOD_FIND_INFO_REQ, METHOD_FIND_INFO_RSP) {
		return DISC_STEP_DSC, PHASE_RES_PENDING
	}

	return DISC_STEP_DSC, PHASE_RES_DONE
}
