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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/newt/util"
)

type ConnType int

const (
	CONN_TYPE_NONE ConnType = iota
	CONN_TYPE_SERIAL
	CONN_TYPE_BLL
	CONN_TYPE_SIM
)

// Indexed by connection type.
var connTypeNames = []string{
	CONN_TYPE_NONE:   "???",
	CONN_TYPE_SERIAL: "serial",
	CONN_TYPE_BLL:    "ble",
	CONN_TYPE_SIM:    "sim",
}

func (ct ConnType) String() string {
	if ct < 0 || int(ct) >= len(connTypeNames) {
		return connTypeNames[CONN_TYPE_NONE]
	}
	return connTypeNames[ct]
}

func ParseConnType(s string) (ConnType, error) {
	for i, name := range connTypeNames {
		if ConnType(i) != CONN_TYPE_NONE && s == name {
			return ConnType(i), nil
		}
	}

	return CONN_TYPE_NONE, util.FmtNewtError("Invalid connection type: %s", s)
}

func (ct ConnType) MarshalText() ([]byte, error) {
	return []byte(ct.String()), nil
}

// Unknown names load as CONN_TYPE_NONE so that one bad entry does not make
// the whole file unreadable.
func (ct *ConnType) UnmarshalText(text []byte) error {
	*ct, _ = ParseConnType(string(text))
	return nil
}

type ConnProfile struct {
	Name       string   `json:"name"`
	Type       ConnType `json:"type"`
	ConnString string   `json:"connstring"`
}

func NewConnProfile() *ConnProfile {
	return &ConnProfile{}
}

func (p *ConnProfile) String() string {
	return fmt.Sprintf("name=%s type=%s connstring=%s",
		p.Name, p.Type, p.ConnString)
}

// ConnProfileMgr keeps named connection profiles in a JSON file.  Every
// change is written back immediately.
type ConnProfileMgr struct {
	path     string
	profiles map[string]*ConnProfile
}

// NewConnProfileMgr loads the profiles stored at path.  A missing file
// yields an empty manager.
func NewConnProfileMgr(path string) (*ConnProfileMgr, error) {
	cpm := &ConnProfileMgr{
		path:     path,
		profiles: map[string]*ConnProfile{},
	}

	log.Debugf("Reading connection profiles from %s", path)
	blob, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return cpm, nil
	}
	if err != nil {
		return nil, util.ChildNewtError(err)
	}

	var list []*ConnProfile
	if err := json.Unmarshal(blob, &list); err != nil {
		return nil, util.FmtNewtError("error reading connection profile "+
			"config (%s): %s", path, err.Error())
	}

	for _, p := range list {
		cpm.profiles[p.Name] = p
	}

	return cpm, nil
}

// List returns the profiles sorted by name.
func (cpm *ConnProfileMgr) List() []*ConnProfile {
	list := make([]*ConnProfile, 0, len(cpm.profiles))
	for _, p := range cpm.profiles {
		list = append(list, p)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

func (cpm *ConnProfileMgr) Get(name string) (*ConnProfile, error) {
	p, ok := cpm.profiles[name]
	if !ok {
		return nil, util.FmtNewtError(
			"connection profile \"%s\" doesn't exist", name)
	}

	return p, nil
}

// Add stores cp, replacing any profile with the same name.
func (cpm *ConnProfileMgr) Add(cp *ConnProfile) error {
	if cp.Type == CONN_TYPE_NONE {
		return util.NewNewtError("Must specify a connection type")
	}

	cpm.profiles[cp.Name] = cp
	return cpm.flush()
}

func (cpm *ConnProfileMgr) Delete(name string) error {
	if _, err := cpm.Get(name); err != nil {
		return err
	}

	delete(cpm.profiles, name)
	return cpm.flush()
}

func (cpm *ConnProfileMgr) flush() error {
	blob, err := json.MarshalIndent(cpm.List(), "", "    ")
	if err != nil {
		return util.ChildNewtError(err)
	}

	if err := ioutil.WriteFile(cpm.path, blob, 0644); err != nil {
		return util.ChildNewtError(err)
	}

	return nil
}

var globalConnProfileMgr *ConnProfileMgr

func GlobalConnProfileMgr() *ConnProfileMgr {
	if globalConnProfileMgr == nil {
		panic("connection profile manager not initialized")
	}
	return globalConnProfileMgr
}

// InitGlobalConnProfileMgr loads the profile file from the user's home
// directory.
func InitGlobalConnProfileMgr() error {
	if globalConnProfileMgr != nil {
		return util.NewNewtError("connection profile manager initialized twice")
	}

	dir, err := homedir.Dir()
	if err != nil {
		return util.ChildNewtError(err)
	}

	cpm, err := NewConnProfileMgr(
		filepath.Join(dir, gdutil.ToolInfo.CfgFilename))
	if err != nil {
		return err
	}

	globalConnProfileMgr = cpm
	return nil
}
