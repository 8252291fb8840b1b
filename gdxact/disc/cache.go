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
)

// Identifies one cached handle within a phase's row.
type HdlIdx int

const (
	HDL_NONE      HdlIdx = -1
	HDL_CHR_START HdlIdx = 0
	HDL_CHR_END   HdlIdx = 1
	HDL_CCCD      HdlIdx = 2
	HDL_CACHE_LEN        = 3
)

var HdlIdxStringMap = map[HdlIdx]string{
	HDL_NONE:      "none",
	HDL_CHR_START: "chr_start",
	HDL_CHR_END:   "chr_end",
	HDL_CCCD:      "cccd",
}

func (idx HdlIdx) String() string {
	s := HdlIdxStringMap[idx]
	if s == "" {
		return fmt.Sprintf("%d", int(idx))
	}
	return s
}

type HdlRow [HDL_CACHE_LEN]uint16

// Handles discovered for each configured target, one row per phase.  A zero
// entry has not been discovered.
type HdlCache struct {
	rows []HdlRow
}

func NewHdlCache(numPhases int) *HdlCache {
	return &HdlCache{
		rows: make([]HdlRow, numPhases),
	}
}

func (c *HdlCache) Reset() {
	for i := range c.rows {
		c.rows[i] = HdlRow{}
	}
}

func (c *HdlCache) NumPhases() int {
	return len(c.rows)
}

// Get returns 0 for an out-of-range phase or role.
func (c *HdlCache) Get(phase int, idx HdlIdx) uint16 {
	if phase < 0 || phase >= len(c.rows) ||
		idx < 0 || int(idx) >= HDL_CACHE_LEN {

		return 0
	}

	return c.rows[phase][idx]
}

func (c *HdlCache) Row(phase int) HdlRow {
	if phase < 0 || phase >= len(c.rows) {
		return HdlRow{}
	}

	return c.rows[phase]
}

func (c *HdlCache) set(phase int, idx HdlIdx, handle uint16) {
	c.rows[phase][idx] = handle
}

func (c *HdlCache) clearRow(phase int) {
	c.rows[phase] = HdlRow{}
}
