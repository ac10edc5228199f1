// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kraklabs/repocanvas/internal/errors"
)

func noop(ctx context.Context, progress func(string)) (any, error) {
	return "done", nil
}

func TestJobIDsMonotonicPerKind(t *testing.T) {
	r := NewRegistry(2, nil)

	assert.Equal(t, "parse_1", r.Submit(KindParse, noop))
	assert.Equal(t, "parse_2", r.Submit(KindParse, noop))
	assert.Equal(t, "index_1", r.Submit(KindIndex, noop))
	assert.Equal(t, "parse_and_index_1", r.Submit(KindParseAndIndex, noop))
	r.Wait()
}

func TestJobCompletesWithResult(t *testing.T) {
	r := NewRegistry(2, nil)

	id := r.Submit(KindParse, func(ctx context.Context, progress func(string)) (any, error) {
		progress("working")
		return map[string]int{"nodes": 3}, nil
	})
	r.Wait()

	snap, ok := r.Status(id)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, snap.State)
	assert.NotNil(t, snap.FinishedAt)
	assert.Equal(t, map[string]int{"nodes": 3}, snap.Result)
	assert.Nil(t, snap.Error)
}

func TestJobFailureStoresErrorKind(t *testing.T) {
	r := NewRegistry(2, nil)

	id := r.Submit(KindIndex, func(ctx context.Context, progress func(string)) (any, error) {
		return nil, apperrors.NewIndexUnavailable("index down", "refused", "start qdrant", nil)
	})
	r.Wait()

	snap, _ := r.Status(id)
	assert.Equal(t, StateFailed, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "IndexUnavailable", snap.Error.Kind)
	assert.Contains(t, snap.Error.Message, "index down")
}

func TestJobCancelStopsAtSuspensionPoint(t *testing.T) {
	r := NewRegistry(2, nil)
	started := make(chan struct{})

	id := r.Submit(KindParse, func(ctx context.Context, progress func(string)) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	<-started
	assert.True(t, r.Cancel(id))
	r.Wait()

	snap, _ := r.Status(id)
	assert.Equal(t, StateCancelled, snap.State)
}

func TestCancelFinishedJobIsNoop(t *testing.T) {
	r := NewRegistry(2, nil)
	id := r.Submit(KindParse, noop)
	r.Wait()

	assert.False(t, r.Cancel(id))
	snap, _ := r.Status(id)
	assert.Equal(t, StateCompleted, snap.State)
}

func TestStatusUnknownJob(t *testing.T) {
	r := NewRegistry(2, nil)
	_, ok := r.Status("parse_99")
	assert.False(t, ok)
}

func TestDeleteJob(t *testing.T) {
	r := NewRegistry(2, nil)
	id := r.Submit(KindParse, noop)
	r.Wait()

	assert.True(t, r.Delete(id))
	_, ok := r.Status(id)
	assert.False(t, ok)
	assert.False(t, r.Delete(id))
}

func TestCompletedJobsRetainedUntilDeleted(t *testing.T) {
	r := NewRegistry(2, nil)
	id := r.Submit(KindParse, noop)
	r.Wait()

	// Still visible long after completion.
	time.Sleep(10 * time.Millisecond)
	_, ok := r.Status(id)
	assert.True(t, ok)
}

func TestListCounts(t *testing.T) {
	r := NewRegistry(4, nil)

	blocker := make(chan struct{})
	running := r.Submit(KindParse, func(ctx context.Context, progress func(string)) (any, error) {
		select {
		case <-blocker:
		case <-ctx.Done():
		}
		return nil, nil
	})
	_ = running

	r.Submit(KindIndex, noop)
	r.Submit(KindIndex, func(ctx context.Context, progress func(string)) (any, error) {
		return nil, fmt.Errorf("boom")
	})

	// Wait for the two short jobs to settle.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l := r.List()
		if l.Completed == 1 && l.Failed == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	l := r.List()
	assert.Equal(t, 3, l.Total)
	assert.Equal(t, 1, l.Active)
	assert.Equal(t, 1, l.Completed)
	assert.Equal(t, 1, l.Failed)

	close(blocker)
	r.Wait()
}

func TestConcurrentJobsRun(t *testing.T) {
	r := NewRegistry(4, nil)

	results := make(chan string, 3)
	for i := 0; i < 3; i++ {
		n := i
		r.Submit(KindParse, func(ctx context.Context, progress func(string)) (any, error) {
			results <- fmt.Sprintf("job-%d", n)
			return nil, nil
		})
	}
	r.Wait()
	assert.Len(t, results, 3)
}
