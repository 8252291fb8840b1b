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
	"fmt"
	"strings"

	"mynewt.apache.org/newt/util"
)

type connKv struct {
	key string
	val string
}

// Splits a comma-separated list of key=value pairs.  If dfltKey is not
// empty, a token without '=' is taken as that key's value.
func splitConnString(cs string, dfltKey string,
	einval func(f string, args ...interface{}) error) ([]connKv, error) {

	var kvs []connKv

	if strings.TrimSpace(cs) == "" {
		return nil, nil
	}

	for _, p := range strings.Split(cs, ",") {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) == 1 {
			if dfltKey == "" {
				return nil, einval("expected comma-separated "+
					"key=value pairs; no '=' in: %s", p)
			}
			kv = []string{dfltKey, kv[0]}
		}

		kvs = append(kvs, connKv{
			key: strings.TrimSpace(kv[0]),
			val: strings.TrimSpace(kv[1]),
		})
	}

	return kvs, nil
}

func einvalFn(kind string) func(f string, args ...interface{}) error {
	return func(f string, args ...interface{}) error {
		suffix := fmt.Sprintf(f, args...)
		return util.FmtNewtError("Invalid %s connstring; %s", kind, suffix)
	}
}

// AppendConnExtra appends the --connextra pairs to a connstring.
func AppendConnExtra(cs string, extra string) string {
	switch {
	case extra == "":
		return cs
	case cs == "":
		return extra
	default:
		return cs + "," + extra
	}
}
