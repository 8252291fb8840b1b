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

// Package sesn binds a discovery state machine to a procedure driver and
// delivers the driver's events to it one at a time.
package sesn

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/gattdisc/gdxact/disc"
	"mynewt.apache.org/gattdisc/gdxact/gdxutil"
	"mynewt.apache.org/gattdisc/gdxact/task"
)

type DiscSesn struct {
	cfg SesnCfg
	drv Driver
	d   *disc.Discoverer
	q   *task.Queue

	mtx    sync.Mutex
	isOpen bool

	// Accessed only from queue jobs.
	state  disc.DiscState
	doneCh chan error
}

func NewDiscSesn(cfg SesnCfg, drv Driver) (*DiscSesn, error) {
	d, err := disc.NewDiscoverer(cfg.Disc, drv)
	if err != nil {
		return nil, err
	}

	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}

	return &DiscSesn{
		cfg: cfg,
		drv: drv,
		d:   d,
		q:   task.NewQueue("disc"),
	}, nil
}

func (s *DiscSesn) IsOpen() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.isOpen
}

func (s *DiscSesn) Open() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.isOpen {
		return gdxutil.NewSesnAlreadyOpenError(
			"Attempt to open an already-open discovery session")
	}

	if err := s.q.Start(s.cfg.QueueDepth); err != nil {
		return err
	}

	if err := s.drv.Start(s.onEvent, s.onErr); err != nil {
		s.q.Stop(err)
		return errors.Wrap(err, "failed to start discovery driver")
	}

	s.isOpen = true
	return nil
}

func (s *DiscSesn) Close() error {
	s.mtx.Lock()
	if !s.isOpen {
		s.mtx.Unlock()
		return gdxutil.NewSesnClosedError(
			"Attempt to close an unopened discovery session")
	}
	s.isOpen = false
	s.mtx.Unlock()

	cause := gdxutil.NewSesnClosedError("discovery session closed")

	// Fail a discovery that is still waiting.
	s.q.Run(func() error {
		s.finish(cause)
		return nil
	})

	err := s.drv.Stop()
	s.q.Stop(cause)

	return err
}

// Called from the driver's goroutine.
func (s *DiscSesn) onEvent(ev *disc.RspEvent) {
	err := s.q.Post(func() {
		s.state = s.d.OnEvent(s.state, ev)
		s.checkDone()
	})
	if err != nil {
		log.Debugf("dropping event after close: %s", ev.String())
	}
}

// Called from the driver's goroutine.
func (s *DiscSesn) onErr(err error) {
	s.q.Post(func() {
		if s.doneCh == nil {
			return
		}
		s.state = disc.DiscStateFailed
		s.finish(gdxutil.FmtXportError("discovery aborted: %s", err.Error()))
	})
}

// Reports the outcome to the waiting Discover call.
func (s *DiscSesn) finish(err error) {
	if s.doneCh != nil {
		s.doneCh <- err
		s.doneCh = nil
	}
}

func (s *DiscSesn) checkDone() {
	if !s.state.Terminal() || s.doneCh == nil {
		return
	}

	if s.state.Kind == disc.DISC_KIND_IDLE {
		s.finish(nil)
		return
	}

	if reqErr := s.d.ReqErr(); reqErr != nil {
		s.finish(gdxutil.FmtXportError("discovery request failed: %s",
			reqErr.Error()))
		return
	}

	name := s.failedTarget()
	s.finish(gdxutil.FmtDiscFailedError(name,
		"discovery failed: target %q not found", name))
}

// Name of the target whose phase was running when discovery failed.
func (s *DiscSesn) failedTarget() string {
	for i, t := range s.cfg.Disc.Targets {
		if s.d.Cache().Get(i, disc.HDL_CHR_START) == 0 && !t.Optional {
			return t.Name
		}
	}
	return ""
}

// Discover runs discovery from the start and waits for it to finish.
func (s *DiscSesn) Discover(timeout time.Duration) (*Result, error) {
	if !s.IsOpen() {
		return nil, gdxutil.NewSesnClosedError(
			"Attempt to discover on a closed session")
	}

	startTime := time.Now()
	doneCh := make(chan error, 1)

	err := s.q.Run(func() error {
		if s.doneCh != nil {
			return gdxutil.NewBusyError("discovery already in progress")
		}

		s.doneCh = doneCh
		s.state = s.d.Start()
		s.checkDone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	var timer <-chan time.Time
	if timeout > 0 {
		timer = time.After(timeout)
	}

	select {
	case err := <-doneCh:
		if err != nil {
			return nil, err
		}

	case <-timer:
		s.drv.Cancel()
		s.q.Run(func() error {
			// Late events must find a terminal state.
			s.state = disc.DiscStateFailed
			s.doneCh = nil
			return nil
		})

		// The outcome may have raced the timer.
		select {
		case err := <-doneCh:
			if err != nil {
				return nil, err
			}
		default:
			return nil, gdxutil.FmtRspTimeoutError(
				"discovery timed out after %s", timeout.String())
		}
	}

	var res *Result
	s.q.Run(func() error {
		res = newResult(s.cfg.Disc, s.d.Cache())
		return nil
	})
	res.Elapsed = time.Since(startTime)

	if s.cfg.Subscriber != nil {
		if err := s.cfg.Subscriber.Subscribe(res); err != nil {
			return res, errors.Wrap(err, "subscriber failed")
		}
	}

	return res, nil
}

// DiscoverTries retries failed discoveries, up to tries attempts in total.
// Closing the session ends the retries.
func (s *DiscSesn) DiscoverTries(timeout time.Duration,
	tries int) (*Result, error) {

	if tries < 1 {
		tries = 1
	}

	var err error
	for i := 1; i <= tries; i++ {
		var res *Result
		res, err = s.Discover(timeout)
		if err == nil {
			res.Tries = i
			return res, nil
		}

		if gdxutil.IsSesnClosed(errors.Cause(err)) ||
			gdxutil.IsBusy(errors.Cause(err)) {

			return nil, err
		}

		log.Debugf("discovery attempt %d/%d failed: %s",
			i, tries, err.Error())
	}

	return nil, err
}

// State returns the state of the most recent discovery.
func (s *DiscSesn) State() disc.DiscState {
	var state disc.DiscState
	if err := s.q.Run(func() error {
		state = s.state
		return nil
	}); err != nil {
		return disc.DiscStateFailed
	}

	return state
}

// Cache returns a copy of the handle cache.  It is only available after a
// successful discovery.
func (s *DiscSesn) Cache() ([]disc.HdlRow, error) {
	var rows []disc.HdlRow

	err := s.q.Run(func() error {
		if s.doneCh != nil || s.state.Kind != disc.DISC_KIND_IDLE {
			return errors.Errorf("handle cache not valid in state %s",
				s.state.String())
		}

		c := s.d.Cache()
		for i := 0; i < c.NumPhases(); i++ {
			rows = append(rows, c.Row(i))
		}
		return nil
	})

	return rows, err
}
