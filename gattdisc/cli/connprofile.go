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
	"strings"

	"github.com/spf13/cobra"

	"mynewt.apache.org/gattdisc/gattdisc/config"
	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/newt/util"
)

// Builds a profile from "<name> type=<type> [connstring=<cs>]" and checks
// that the connstring parses for that type.
func parseConnProfileArgs(args []string) (*config.ConnProfile, error) {
	if len(args) == 0 {
		return nil, util.NewNewtError("Need connection profile name")
	}

	cp := config.NewConnProfile()
	cp.Name = args[0]

	for _, vdef := range args[1:] {
		kv := strings.SplitN(vdef, "=", 2)
		if len(kv) != 2 {
			return nil, util.FmtNewtError("Expected varname=value: %s", vdef)
		}

		switch kv[0] {
		case "type":
			var err error
			if cp.Type, err = config.ParseConnType(kv[1]); err != nil {
				return nil, err
			}

		case "connstring":
			cp.ConnString = kv[1]

		default:
			return nil, util.FmtNewtError("Unknown variable %s", kv[0])
		}
	}

	var err error
	switch cp.Type {
	case config.CONN_TYPE_SERIAL:
		_, err = config.ParseSerialConnString(cp.ConnString)
	case config.CONN_TYPE_BLL:
		_, err = config.ParseBllConnString(cp.ConnString)
	case config.CONN_TYPE_SIM:
		_, err = config.ParseSimConnString(cp.ConnString)
	default:
		err = util.NewNewtError("Must specify a connection type")
	}
	if err != nil {
		return nil, err
	}

	return cp, nil
}

func connProfileCmd() *cobra.Command {
	name := gdutil.ToolInfo.ShortName

	cpCmd := &cobra.Command{
		Use:   "conn",
		Short: "Manage " + name + " connection profiles",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	addHelpText := `Add or replace a connection profile.  Variables:
  type=serial|ble|sim
  connstring=<key=value,...>

Connstring keys:
  serial: dev, baud, mtu
  ble:    peer_name, peer_id, own_addr_type, conn_timeout, mtu
  sim:    profile, mtu
`

	cpCmd.AddCommand(&cobra.Command{
		Use:   "add <conn_profile> <varname=value ...>",
		Short: "Add a " + name + " connection profile",
		Long:  addHelpText,
		Example: "  " + gdutil.ToolInfo.ExeName +
			" conn add phone type=ble connstring=\"peer_name=iPhone\"",
		Run: func(cmd *cobra.Command, args []string) {
			cp, err := parseConnProfileArgs(args)
			if err != nil {
				nmUsage(cmd, err)
			}

			if err := config.GlobalConnProfileMgr().Add(cp); err != nil {
				nmUsage(nil, err)
			}
			fmt.Printf("Connection profile %s successfully added\n", cp.Name)
		},
	})

	cpCmd.AddCommand(&cobra.Command{
		Use:   "delete <conn_profile>",
		Short: "Delete a " + name + " connection profile",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := config.GlobalConnProfileMgr().Delete(args[0]); err != nil {
				nmUsage(nil, err)
			}
			fmt.Printf("Connection profile %s successfully deleted.\n", args[0])
		},
	})

	cpCmd.AddCommand(&cobra.Command{
		Use:   "show [conn_profile]",
		Short: "Show " + name + " connection profiles",
		Long: "Show the named connection profile, or all connection " +
			"profiles if none is named.",
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(connProfileText(config.GlobalConnProfileMgr().List(),
				args))
		},
	})

	return cpCmd
}

func connProfileText(list []*config.ConnProfile, args []string) string {
	str := ""
	for _, cp := range list {
		if len(args) > 0 && cp.Name != args[0] {
			continue
		}
		str += fmt.Sprintf("  %s: type=%s, connstring='%s'\n",
			cp.Name, cp.Type, cp.ConnString)
	}

	switch {
	case str != "":
		return "Connection profiles:\n" + str
	case len(args) > 0:
		return fmt.Sprintf("No connection profiles found matching %s\n",
			args[0])
	default:
		return "No connection profiles found!\n"
	}
}
