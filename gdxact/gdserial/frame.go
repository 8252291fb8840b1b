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

package gdserial

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"

	"github.com/joaojeronimo/go-crc16"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Segment markers.
var frameStart = []byte{6, 9}
var frameCont = []byte{4, 20}

// Each line fits in 128 bytes: 2 marker bytes, base64 text (a multiple of
// 4) and the line ending.
const maxSegLen = 124

// EncodeFrame wraps a PDU for the serial line: CRC16 appended, 2-byte
// length prepended, base64 encoded and split into newline-terminated
// segments.
func EncodeFrame(pdu []byte) [][]byte {
	body := make([]byte, len(pdu), len(pdu)+2)
	copy(body, pdu)

	crcBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(crcBytes, crc16.Crc16(pdu))
	body = append(body, crcBytes...)

	pktData := make([]byte, 2, 2+len(body))
	binary.BigEndian.PutUint16(pktData, uint16(len(body)))
	pktData = append(pktData, body...)

	b64 := make([]byte, base64.StdEncoding.EncodedLen(len(pktData)))
	base64.StdEncoding.Encode(b64, pktData)

	var segs [][]byte
	for written := 0; written < len(b64); {
		var seg []byte
		if written == 0 {
			seg = append(seg, frameStart...)
		} else {
			seg = append(seg, frameCont...)
		}

		writeLen := len(b64) - written
		if writeLen > maxSegLen {
			writeLen = maxSegLen
		}

		seg = append(seg, b64[written:written+writeLen]...)
		seg = append(seg, '\n')
		segs = append(segs, seg)

		written += writeLen
	}

	return segs
}

// Reassembles frames from received lines.
type frameDecoder struct {
	pkt *Packet
}

// Feed consumes one line.  It returns the PDU once a frame is complete, or
// nil if more lines are needed or the line was not part of a frame.
func (fd *frameDecoder) Feed(line []byte) ([]byte, error) {
	line = trimCR(line)

	if len(line) < 2 {
		return nil, nil
	}

	isStart := line[0] == frameStart[0] && line[1] == frameStart[1]
	isCont := line[0] == frameCont[0] && line[1] == frameCont[1]
	if !isStart && !isCont {
		// Console output sharing the line.
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(string(line[2:]))
	if err != nil {
		fd.pkt = nil
		return nil, errors.Errorf("couldn't decode base64 string: %s\n"+
			"Packet hex dump:\n%s", string(line[2:]), hex.Dump(line))
	}

	if isStart {
		if len(data) < 2 {
			return nil, nil
		}

		pktLen := binary.BigEndian.Uint16(data[0:2])
		fd.pkt, err = NewPacket(pktLen)
		if err != nil {
			return nil, err
		}
		data = data[2:]
	}

	if fd.pkt == nil {
		return nil, nil
	}

	if !fd.pkt.AddBytes(data) {
		return nil, nil
	}

	pkt := fd.pkt
	fd.pkt = nil

	if crc16.Crc16(pkt.GetBytes()) != 0 {
		return nil, errors.New("CRC error")
	}

	pkt.TrimEnd(2)
	b := pkt.GetBytes()

	log.Debugf("Decoded input:\n%s", hex.Dump(b))
	return b, nil
}

func trimCR(line []byte) []byte {
	for len(line) > 1 && line[0] == '\r' {
		line = line[1:]
	}
	for len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line
}
