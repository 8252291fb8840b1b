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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/gattdisc/gdxact/gdxutil"
	"mynewt.apache.org/newt/util"
)

var GattdiscLogLevel log.Level

func Commands() *cobra.Command {
	logLevelStr := ""
	gdCmd := &cobra.Command{
		Use:   gdutil.ToolInfo.ExeName,
		Short: gdutil.ToolInfo.ShortName + " locates GATT characteristics on a peer",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			GattdiscLogLevel, err = log.ParseLevel(logLevelStr)
			if err != nil {
				nmUsage(nil, util.ChildNewtError(err))
			}

			err = util.Init(GattdiscLogLevel, "", util.VERBOSITY_DEFAULT)
			if err != nil {
				nmUsage(nil, err)
			}
			gdxutil.SetLogLevel(GattdiscLogLevel)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	gdCmd.PersistentFlags().StringVarP(&gdutil.ConnProfile, "conn", "c", "",
		"connection profile to use")

	gdCmd.PersistentFlags().Float64VarP(&gdutil.Timeout, "timeout", "t", 10.0,
		"timeout in seconds (partial seconds allowed)")

	gdCmd.PersistentFlags().IntVarP(&gdutil.Tries, "tries", "r", 1,
		"total number of discovery attempts")

	gdCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l", "info",
		"log level to use")

	gdCmd.PersistentFlags().StringVar(&gdutil.ConnType, "conntype", "",
		"Connection type to use instead of using the profile's type")

	gdCmd.PersistentFlags().StringVar(&gdutil.ConnString, "connstring", "",
		"Connection key-value pairs to use instead of using the profile's "+
			"connstring")

	gdCmd.PersistentFlags().StringVar(&gdutil.ConnExtra, "connextra", "",
		"Additional key-value pair to append to the connstring")

	gdCmd.PersistentFlags().StringArrayVar(&gdutil.Targets, "target", nil,
		"target to locate: name=<name>,svc=<uuid>,chr=<uuid>[,optional]; "+
			"repeatable")

	gdCmd.PersistentFlags().StringVar(&gdutil.TargetsFile, "targets-file", "",
		"YAML file listing the targets to locate")

	gdCmd.PersistentFlags().IntVarP(&gdutil.HciIdx, "hci", "i",
		0, "HCI index for the controller on Linux machine")

	versCmd := &cobra.Command{
		Use:     "version",
		Short:   "Display the " + gdutil.ToolInfo.ShortName + " version number",
		Example: "  " + gdutil.ToolInfo.ExeName + " version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n",
				gdutil.ToolInfo.LongName,
				gdutil.ToolInfo.VersionString)
		},
	}
	gdCmd.AddCommand(versCmd)

	gdCmd.AddCommand(discoverCmd())
	gdCmd.AddCommand(connProfileCmd())

	return gdCmd
}
