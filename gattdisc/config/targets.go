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
	"io/ioutil"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"mynewt.apache.org/gattdisc/gdxact/bledefs"
	"mynewt.apache.org/gattdisc/gdxact/disc"
	"mynewt.apache.org/newt/util"
)

var einvalTargetString = einvalFn("target")

// ParseTargetString parses "name=ancs,svc=<uuid>,chr=<uuid>[,optional]".
// The name defaults to the characteristic UUID.
func ParseTargetString(s string) (disc.Target, error) {
	t := disc.Target{}
	var haveSvc, haveChr bool

	for _, tok := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(tok), "=", 2)
		k := kv[0]
		v := ""
		if len(kv) == 2 {
			v = kv[1]
		}

		var err error
		switch k {
		case "name":
			t.Name = v

		case "svc":
			t.SvcUuid, err = bledefs.ParseUuid(v)
			if err != nil {
				return t, einvalTargetString("Invalid svc: %s", v)
			}
			haveSvc = true

		case "chr":
			t.ChrUuid, err = bledefs.ParseUuid(v)
			if err != nil {
				return t, einvalTargetString("Invalid chr: %s", v)
			}
			haveChr = true

		case "optional":
			t.Optional = true
			if len(kv) == 2 {
				t.Optional, err = cast.ToBoolE(v)
				if err != nil {
					return t, einvalTargetString("Invalid optional: %s", v)
				}
			}

		default:
			return t, einvalTargetString("Unrecognized key: %s", k)
		}
	}

	if !haveSvc || !haveChr {
		return t, einvalTargetString("svc and chr required: %s", s)
	}
	if t.Name == "" {
		t.Name = t.ChrUuid.String()
	}

	return t, nil
}

type yamlTarget struct {
	Name     string `yaml:"name"`
	Svc      string `yaml:"svc"`
	Chr      string `yaml:"chr"`
	Optional bool   `yaml:"optional"`
}

type yamlTargets struct {
	ConnHandle uint16       `yaml:"conn_handle"`
	Targets    []yamlTarget `yaml:"targets"`
}

// ParseTargets decodes a targets document:
//
//	conn_handle: 1
//	targets:
//	  - name: ancs
//	    svc: 7905F431-B5CE-4E99-A40F-4B1E122D00D0
//	    chr: 9FBF120D-6301-42D9-8C58-25E699A21DBD
//	    optional: false
func ParseTargets(data []byte) (disc.DiscCfg, error) {
	cfg := disc.DiscCfg{}

	var yt yamlTargets
	if err := yaml.Unmarshal(data, &yt); err != nil {
		return cfg, util.FmtNewtError("error parsing targets: %s",
			err.Error())
	}

	cfg.ConnHandle = yt.ConnHandle
	for i, y := range yt.Targets {
		svc, err := bledefs.ParseUuid(y.Svc)
		if err != nil {
			return cfg, util.FmtNewtError("target %d: invalid svc: %s",
				i, y.Svc)
		}

		chr, err := bledefs.ParseUuid(y.Chr)
		if err != nil {
			return cfg, util.FmtNewtError("target %d: invalid chr: %s",
				i, y.Chr)
		}

		name := y.Name
		if name == "" {
			name = chr.String()
		}

		cfg.Targets = append(cfg.Targets, disc.Target{
			Name:     name,
			SvcUuid:  svc,
			ChrUuid:  chr,
			Optional: y.Optional,
		})
	}

	if len(cfg.Targets) == 0 {
		return cfg, util.NewNewtError("targets file lists no targets")
	}

	return cfg, nil
}

func LoadTargets(path string) (disc.DiscCfg, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return disc.DiscCfg{}, util.ChildNewtError(err)
	}

	return ParseTargets(data)
}

// BuildDiscCfg combines a targets file and --target strings, in that
// order.  With neither, the ANCS notification source is the only target.
func BuildDiscCfg(targetsFile string, targetStrs []string) (disc.DiscCfg,
	error) {

	cfg := disc.DiscCfg{}
	if targetsFile != "" {
		var err error
		cfg, err = LoadTargets(targetsFile)
		if err != nil {
			return cfg, err
		}
	}

	for _, s := range targetStrs {
		t, err := ParseTargetString(s)
		if err != nil {
			return cfg, err
		}
		cfg.Targets = append(cfg.Targets, t)
	}

	if len(cfg.Targets) == 0 {
		cfg.Targets = []disc.Target{disc.AncsTarget()}
	}

	return cfg, nil
}
