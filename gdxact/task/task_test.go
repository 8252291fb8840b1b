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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/gattdisc/gdxact/gdxutil"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue("test")
	require.NoError(t, q.Start(8))
	defer q.Stop(nil)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, q.Post(func() { order = append(order, i) }))
	}

	// Run waits for everything posted before it.
	err := q.Run(func() error {
		assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
		return errors.New("job result")
	})
	assert.EqualError(t, err, "job result")
}

func TestQueueStartStop(t *testing.T) {
	q := NewQueue("test")

	assert.True(t, gdxutil.IsSesnClosed(q.Run(func() error { return nil })))
	assert.Error(t, q.Post(func() {}))
	assert.Error(t, q.Stop(nil))

	require.NoError(t, q.Start(1))
	assert.True(t, q.Active())
	assert.True(t, gdxutil.IsSesnAlreadyOpen(q.Start(1)))

	require.NoError(t, q.Stop(nil))
	assert.False(t, q.Active())

	// Restartable.
	require.NoError(t, q.Start(1))
	assert.NoError(t, q.Run(func() error { return nil }))
	require.NoError(t, q.Stop(nil))
}

func TestQueueStopFailsPending(t *testing.T) {
	q := NewQueue("test")
	require.NoError(t, q.Start(4))

	block := make(chan struct{})
	started := make(chan struct{})
	q.Post(func() {
		close(started)
		<-block
	})
	<-started

	cause := errors.New("stopped")
	ch := q.Enqueue(func() error { return nil })

	go close(block)
	require.NoError(t, q.Stop(cause))

	// The pending job either ran before the stop took effect or was
	// failed with the cause.
	err := <-ch
	if err != nil {
		assert.Equal(t, cause, err)
	}
}
