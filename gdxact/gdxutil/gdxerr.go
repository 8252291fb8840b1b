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

package gdxutil

import (
	"fmt"
)

// Indicates that discovery ended in the failed state: the target service or
// a mandatory characteristic is absent from the peer.
type DiscFailedError struct {
	Text   string
	Target string
}

func NewDiscFailedError(target string, text string) *DiscFailedError {
	return &DiscFailedError{
		Text:   text,
		Target: target,
	}
}

func FmtDiscFailedError(target string, format string,
	args ...interface{}) *DiscFailedError {

	return NewDiscFailedError(target, fmt.Sprintf(format, args...))
}

func (e *DiscFailedError) Error() string {
	return e.Text
}

func IsDiscFailed(err error) bool {
	_, ok := err.(*DiscFailedError)
	return ok
}

// Represents a discovery timeout; request sent, but the procedure never
// completed.
type RspTimeoutError struct {
	Text string
}

func NewRspTimeoutError(text string) *RspTimeoutError {
	return &RspTimeoutError{
		Text: text,
	}
}

func FmtRspTimeoutError(format string, args ...interface{}) *RspTimeoutError {
	return NewRspTimeoutError(fmt.Sprintf(format, args...))
}

func (e *RspTimeoutError) Error() string {
	return e.Text
}

func IsRspTimeout(err error) bool {
	_, ok := err.(*RspTimeoutError)
	return ok
}

type SesnAlreadyOpenError struct {
	Text string
}

func NewSesnAlreadyOpenError(text string) *SesnAlreadyOpenError {
	return &SesnAlreadyOpenError{
		Text: text,
	}
}

func (e *SesnAlreadyOpenError) Error() string {
	return e.Text
}

func IsSesnAlreadyOpen(err error) bool {
	_, ok := err.(*SesnAlreadyOpenError)
	return ok
}

type SesnClosedError struct {
	Text string
}

func NewSesnClosedError(text string) *SesnClosedError {
	return &SesnClosedError{
		Text: text,
	}
}

func (e *SesnClosedError) Error() string {
	return e.Text
}

func IsSesnClosed(err error) bool {
	_, ok := err.(*SesnClosedError)
	return ok
}

// Represents a low-level transport error.
type XportError struct {
	Text string
}

func NewXportError(text string) *XportError {
	return &XportError{text}
}

func FmtXportError(format string, args ...interface{}) *XportError {
	return NewXportError(fmt.Sprintf(format, args...))
}

func (e *XportError) Error() string {
	return e.Text
}

func IsXport(err error) bool {
	if err == nil {
		return false
	}

	_, ok := err.(*XportError)
	return ok
}

// Indicates a request was issued while another procedure was still in
// flight on the same bearer.
type BusyError struct {
	Text string
}

func NewBusyError(text string) *BusyError {
	return &BusyError{text}
}

func (e *BusyError) Error() string {
	return e.Text
}

func IsBusy(err error) bool {
	if err == nil {
		return false
	}

	_, ok := err.(*BusyError)
	return ok
}
