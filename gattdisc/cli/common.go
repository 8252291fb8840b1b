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
	"fmt"

	"mynewt.apache.org/gattdisc/gattdisc/bll"
	"mynewt.apache.org/gattdisc/gattdisc/config"
	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/gattdisc/gdxact/gattc"
	"mynewt.apache.org/gattdisc/gdxact/sesn"
	"mynewt.apache.org/newt/util"
)

var globalSesn *sesn.DiscSesn

// The --conntype flag overrides the named profile.
func getConnProfile() (*config.ConnProfile, error) {
	if gdutil.ConnType != "" {
		ct, err := config.ParseConnType(gdutil.ConnType)
		if err != nil {
			return nil, err
		}

		return &config.ConnProfile{
			Name:       "<cmdline>",
			Type:       ct,
			ConnString: gdutil.ConnString,
		}, nil
	}

	if gdutil.ConnProfile == "" {
		return nil, util.NewNewtError(
			"No connection specified; use --conn or --conntype")
	}

	cp, err := config.GlobalConnProfileMgr().Get(gdutil.ConnProfile)
	if err != nil {
		return nil, err
	}

	if gdutil.ConnString != "" {
		dup := *cp
		dup.ConnString = gdutil.ConnString
		cp = &dup
	}

	return cp, nil
}

func buildDriver(cp *config.ConnProfile) (sesn.Driver, error) {
	cs := config.AppendConnExtra(cp.ConnString, gdutil.ConnExtra)

	switch cp.Type {
	case config.CONN_TYPE_SERIAL:
		sc, err := config.ParseSerialConnString(cs)
		if err != nil {
			return nil, err
		}

		sx, err := config.BuildSerialXport(sc)
		if err != nil {
			return nil, err
		}
		return gattc.NewClient(sx), nil

	case config.CONN_TYPE_SIM:
		sc, err := config.ParseSimConnString(cs)
		if err != nil {
			return nil, err
		}

		sx, err := config.BuildSimXport(sc)
		if err != nil {
			return nil, util.ChildNewtError(err)
		}
		return gattc.NewClient(sx), nil

	case config.CONN_TYPE_BLL:
		bc, err := config.ParseBllConnString(cs)
		if err != nil {
			return nil, err
		}

		dc, err := config.BuildBllDriverCfg(bc)
		if err != nil {
			return nil, err
		}
		return bll.NewBllDriver(dc), nil

	default:
		return nil, util.FmtNewtError("Unknown connection type: %s (%d)",
			cp.Type.String(), int(cp.Type))
	}
}

func buildSesnCfg() (sesn.SesnCfg, error) {
	sc := sesn.NewSesnCfg()

	dc, err := config.BuildDiscCfg(gdutil.TargetsFile, gdutil.Targets)
	if err != nil {
		return sc, err
	}
	sc.Disc = dc
	sc.Subscriber = &logSubscriber{}

	return sc, nil
}

// GetSesn builds and opens the global discovery session.
func GetSesn() (*sesn.DiscSesn, error) {
	if globalSesn != nil {
		return globalSesn, nil
	}

	cp, err := getConnProfile()
	if err != nil {
		return nil, err
	}

	drv, err := buildDriver(cp)
	if err != nil {
		return nil, err
	}

	sc, err := buildSesnCfg()
	if err != nil {
		return nil, err
	}

	s, err := sesn.NewDiscSesn(sc, drv)
	if err != nil {
		return nil, util.ChildNewtError(err)
	}

	if err := s.Open(); err != nil {
		return nil, util.ChildNewtError(err)
	}

	globalSesn = s
	return globalSesn, nil
}

func GetSesnIfOpen() (*sesn.DiscSesn, error) {
	if globalSesn == nil {
		return nil, fmt.Errorf("sesn not initialized")
	}

	return globalSesn, nil
}
