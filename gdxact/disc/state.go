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

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
)

type DiscKind int

const (
	DISC_KIND_IDLE DiscKind = iota
	DISC_KIND_ACTIVE
	DISC_KIND_FAILED
)

var DiscKindStringMap = map[DiscKind]string{
	DISC_KIND_IDLE:   "idle",
	DISC_KIND_ACTIVE: "active",
	DISC_KIND_FAILED: "failed",
}

func (k DiscKind) String() string {
	s := DiscKindStringMap[k]
	if s == "" {
		return "???"
	}
	return s
}

type DiscStep int

const (
	// The phase has not issued its first request yet.  The dispatcher runs
	// a state with this step immediately rather than waiting for an event.
	DISC_STEP_START DiscStep = iota
	DISC_STEP_SVC
	DISC_STEP_CHR
	DISC_STEP_DSC
)

var DiscStepStringMap = map[DiscStep]string{
	DISC_STEP_START: "start",
	DISC_STEP_SVC:   "svc",
	DISC_STEP_CHR:   "chr",
	DISC_STEP_DSC:   "dsc",
}

func (s DiscStep) String() string {
	str := DiscStepStringMap[s]
	if str == "" {
		return "???"
	}
	return str
}

// DiscState is the value threaded through Start and OnEvent.  Phase and Step
// are only meaningful while Kind is DISC_KIND_ACTIVE.  The zero value is
// idle.
type DiscState struct {
	Kind  DiscKind
	Phase int
	Step  DiscStep
}

var DiscStateIdle = DiscState{Kind: DISC_KIND_IDLE}
var DiscStateFailed = DiscState{Kind: DISC_KIND_FAILED}

func activeState(phase int, step DiscStep) DiscState {
	return DiscState{
		Kind:  DISC_KIND_ACTIVE,
		Phase: phase,
		Step:  step,
	}
}

func (s DiscState) Terminal() bool {
	return s.Kind != DISC_KIND_ACTIVE
}

func (s DiscState) String() string {
	if s.Kind != DISC_KIND_ACTIVE {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(phase=%d step=%s)", s.Kind, s.Phase, s.Step)
}

// One service/characteristic pair to locate.  Each target is discovered in
// its own phase, in configuration order.
type Target struct {
	Name    string
	SvcUuid bledefs.BleUuid
	ChrUuid bledefs.BleUuid

	// If set, a missing service or characteristic leaves this target's
	// cache row zero and discovery continues with the next target.
	Optional bool
}

func (t *Target) String() string {
	return fmt.Sprintf("%s(svc=%s chr=%s)",
		t.Name, t.SvcUuid.String(), t.ChrUuid.String())
}

type DiscCfg struct {
	ConnHandle uint16
	Targets    []Target
}

// Target set for the Apple Notification Center Service notification
// source characteristic.
func AncsTarget() Target {
	return Target{
		Name:    "ancs",
		SvcUuid: bledefs.MustParseUuid(bledefs.AncsSvcUuid),
		ChrUuid: bledefs.MustParseUuid(bledefs.AncsNotifSrcChrUuid),
	}
}

func NewDiscCfg() DiscCfg {
	return DiscCfg{
		Targets: []Target{AncsTarget()},
	}
}
