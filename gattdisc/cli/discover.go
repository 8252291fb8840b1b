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
	"os"
	"reflect"

	"github.com/fatih/structs"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ugorji/go/codec"

	"mynewt.apache.org/gattdisc/gattdisc/gdutil"
	"mynewt.apache.org/gattdisc/gdxact/sesn"
	"mynewt.apache.org/newt/util"
)

// logSubscriber reports the handles an application would use to enable
// notifications.  It does not write to the peer.
type logSubscriber struct{}

func (ls *logSubscriber) Subscribe(res *sesn.Result) error {
	for i := range res.Targets {
		t := &res.Targets[i]
		if t.Notifiable() {
			log.Infof("%s: enable notifications by writing 0x0001 to "+
				"CCCD 0x%04x", t.Name, t.CccdHandle)
		} else if t.Found {
			log.Infof("%s: no CCCD; notifications unavailable", t.Name)
		}
	}

	return nil
}

func encodeResult(res *sesn.Result, h codec.Handle) ([]byte, error) {
	var b []byte
	enc := codec.NewEncoderBytes(&b, h)
	if err := enc.Encode(res); err != nil {
		return nil, util.ChildNewtError(err)
	}

	return b, nil
}

// Renders a struct one field per line, using the codec tags as names.
func textFields(v interface{}, indent string) string {
	s := structs.New(v)
	s.TagName = "codec"

	str := ""
	for _, f := range s.Fields() {
		name := f.Tag("codec")
		if name == "" {
			name = f.Name()
		}

		val := f.Value()
		if reflect.TypeOf(val).Kind() == reflect.Uint16 {
			str += fmt.Sprintf("%s%-16s 0x%04x\n", indent, name+":", val)
		} else {
			str += fmt.Sprintf("%s%-16s %v\n", indent, name+":", val)
		}
	}

	return str
}

func resultText(res *sesn.Result) string {
	str := fmt.Sprintf("conn_handle=%d tries=%d elapsed=%s\n",
		res.ConnHandle, res.Tries, res.Elapsed.String())

	for i := range res.Targets {
		t := &res.Targets[i]
		str += fmt.Sprintf("%s\n", t.Name)
		str += textFields(t, "    ")
	}

	return str
}

func formatResult(res *sesn.Result, format string) ([]byte, error) {
	switch format {
	case "text":
		return []byte(resultText(res)), nil

	case "json":
		h := &codec.JsonHandle{}
		h.Indent = 4
		b, err := encodeResult(res, h)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil

	case "cbor":
		return encodeResult(res, &codec.CborHandle{})

	default:
		return nil, util.FmtNewtError("Invalid output format: %s", format)
	}
}

func discoverRunCmd(cmd *cobra.Command, args []string) {
	if _, err := formatResult(&sesn.Result{}, gdutil.OutputFormat); err != nil {
		nmUsage(cmd, err)
	}

	s, err := GetSesn()
	if err != nil {
		nmUsage(nil, err)
	}

	res, err := s.DiscoverTries(gdutil.TimeoutDuration(), gdutil.Tries)
	if err != nil {
		nmUsage(nil, util.ChildNewtError(err))
	}

	b, err := formatResult(res, gdutil.OutputFormat)
	if err != nil {
		nmUsage(nil, err)
	}

	os.Stdout.Write(b)
}

func discoverCmd() *cobra.Command {
	discHelpText := "Locate each target's characteristic value handle, " +
		"end handle and CCCD.\nWithout --target or --targets-file, the " +
		"ANCS notification source is located."

	discCmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover target characteristics on a peer",
		Long:  discHelpText,
		Example: "  " + gdutil.ToolInfo.ExeName + " -c phone discover\n" +
			"  " + gdutil.ToolInfo.ExeName + " --conntype sim discover " +
			"--format json\n" +
			"  " + gdutil.ToolInfo.ExeName + " -c phone discover " +
			"--target name=bat,svc=0x180f,chr=0x2a19",
		Run: discoverRunCmd,
	}

	discCmd.Flags().StringVarP(&gdutil.OutputFormat, "format", "f", "text",
		"output format: text, json or cbor")

	return discCmd
}
