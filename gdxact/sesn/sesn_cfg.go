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

package sesn

import (
	"fmt"
	"time"

	"mynewt.apache.org/gattdisc/gdxact/disc"
)

// Driver performs discovery procedures on one connection and reports their
// progress as events.
type Driver interface {
	disc.Requester

	// Start connects the driver.  evCb receives every response event;
	// errCb receives errors that abort a procedure after its request was
	// accepted.
	Start(evCb disc.EventFn, errCb func(err error)) error
	Stop() error

	// Cancel abandons the procedure in flight, if any.
	Cancel()
}

// Subscriber acts on the handles of a successful discovery, e.g. by
// enabling notifications through the discovered CCCDs.
type Subscriber interface {
	Subscribe(res *Result) error
}

type SesnCfg struct {
	Disc disc.DiscCfg

	// Called after each successful discovery.  May be nil.
	Subscriber Subscriber

	// Number of events that can be pending before the driver blocks.
	QueueDepth int
}

func NewSesnCfg() SesnCfg {
	return SesnCfg{
		Disc:       disc.NewDiscCfg(),
		QueueDepth: 64,
	}
}

type TargetResult struct {
	Name     string `json:"name" codec:"name"`
	SvcUuid  string `json:"svc_uuid" codec:"svc_uuid"`
	ChrUuid  string `json:"chr_uuid" codec:"chr_uuid"`
	Optional bool   `json:"optional" codec:"optional"`
	Found    bool   `json:"found" codec:"found"`

	ChrValHandle uint16 `json:"chr_val_handle" codec:"chr_val_handle"`
	ChrEndHandle uint16 `json:"chr_end_handle" codec:"chr_end_handle"`
	CccdHandle   uint16 `json:"cccd_handle" codec:"cccd_handle"`
}

type Result struct {
	ConnHandle uint16         `json:"conn_handle" codec:"conn_handle"`
	Targets    []TargetResult `json:"targets" codec:"targets"`
	Tries      int            `json:"tries" codec:"tries"`
	Elapsed    time.Duration  `json:"elapsed" codec:"elapsed"`
}

// Builds a result from the cache of a discovery that ended idle.
func newResult(cfg disc.DiscCfg, cache *disc.HdlCache) *Result {
	res := &Result{
		ConnHandle: cfg.ConnHandle,
	}

	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		row := cache.Row(i)

		res.Targets = append(res.Targets, TargetResult{
			Name:         t.Name,
			SvcUuid:      t.SvcUuid.String(),
			ChrUuid:      t.ChrUuid.String(),
			Optional:     t.Optional,
			Found:        row[disc.HDL_CHR_START] != 0,
			ChrValHandle: row[disc.HDL_CHR_START],
			ChrEndHandle: row[disc.HDL_CHR_END],
			CccdHandle:   row[disc.HDL_CCCD],
		})
	}

	return res
}

// Target returns the result for the named target.
func (r *Result) Target(name string) (TargetResult, error) {
	for _, t := range r.Targets {
		if t.Name == name {
			return t, nil
		}
	}

	return TargetResult{}, fmt.Errorf("no such target: %s", name)
}

// Notifiable indicates whether notifications can be enabled for the
// target.
func (t *TargetResult) Notifiable() bool {
	return t.Found && t.CccdHandle != 0
}

func (t *TargetResult) String() string {
	if !t.Found {
		return fmt.Sprintf("%s: not found", t.Name)
	}

	return fmt.Sprintf("%s: svc=%s chr=%s val=0x%04x end=0x%04x cccd=0x%04x",
		t.Name, t.SvcUuid, t.ChrUuid, t.ChrValHandle, t.ChrEndHandle,
		t.CccdHandle)
}
