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

package task

import (
	"sync"

	"mynewt.apache.org/gattdisc/gdxact/gdxutil"
)

type job struct {
	fn func() error

	// nil for posted jobs.
	ch chan error
}

// Queue runs jobs one at a time, in submission order, on a single
// goroutine.  Code that runs only inside jobs needs no locking of its own.
type Queue struct {
	name   string
	jobCh  chan job
	stopCh chan struct{}
	active bool
	mtx    sync.Mutex
	wg     sync.WaitGroup
}

func NewQueue(name string) *Queue {
	return &Queue{
		name: name,
	}
}

func (q *Queue) inactiveErr() error {
	return gdxutil.NewSesnClosedError("inactive task queue: " + q.name)
}

func (q *Queue) push(j job) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if !q.active {
		return q.inactiveErr()
	}

	q.jobCh <- j
	return nil
}

// Enqueue pushes fn onto the queue.  The job's result is sent over the
// returned channel.
func (q *Queue) Enqueue(fn func() error) chan error {
	j := job{
		fn: fn,
		ch: make(chan error, 1),
	}

	if err := q.push(j); err != nil {
		j.ch <- err
		close(j.ch)
	}

	return j.ch
}

// Run enqueues fn and waits for it to complete.  Calling Run from inside a
// job deadlocks.
func (q *Queue) Run(fn func() error) error {
	return <-q.Enqueue(fn)
}

// Post enqueues fn without waiting for it.  It fails only if the queue is
// stopped.
func (q *Queue) Post(fn func()) error {
	return q.push(job{
		fn: func() error {
			fn()
			return nil
		},
	})
}

// Start starts the queue's goroutine.  depth is the number of jobs that can
// be pending before submitters block.
func (q *Queue) Start(depth int) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if q.active {
		return gdxutil.NewSesnAlreadyOpenError(
			"task queue started twice: " + q.name)
	}
	q.active = true

	jobCh := make(chan job, depth)
	q.jobCh = jobCh

	stopCh := make(chan struct{})
	q.stopCh = stopCh

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		for {
			select {
			case j, ok := <-jobCh:
				if !ok {
					return
				}
				err := j.fn()
				if j.ch != nil {
					j.ch <- err
					close(j.ch)
				}

			case <-stopCh:
				return
			}
		}
	}()

	return nil
}

// Stop stops the queue and fails any pending jobs with cause.  It blocks
// until the queue's goroutine returns, so it must not be called from inside
// a job.
func (q *Queue) Stop(cause error) error {
	q.mtx.Lock()
	if !q.active {
		q.mtx.Unlock()
		return q.inactiveErr()
	}

	close(q.stopCh)
	q.active = false
	q.mtx.Unlock()

	q.wg.Wait()

	// The goroutine has returned; nothing else reads the channel.
	close(q.jobCh)
	for j := range q.jobCh {
		if j.ch != nil {
			j.ch <- cause
			close(j.ch)
		}
	}

	return nil
}

func (q *Queue) Active() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	return q.active
}
