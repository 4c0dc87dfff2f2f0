package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/respond"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	since []time.Time
	err   error
}

func (r *countingRefresher) RefreshSince(ctx context.Context, since time.Time) (*respond.RefreshRespond, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.since = append(r.since, since)
	if r.err != nil {
		return nil, r.err
	}
	return &respond.RefreshRespond{Records: 1}, nil
}

func TestRunOnce(t *testing.T) {
	r := &countingRefresher{}
	m := NewSchedulerManager(r, "", 0)
	m.RunOnce()
	assert.Equal(t, 1, r.calls)
	assert.True(t, r.since[0].IsZero())
	last, err := m.LastRun()
	assert.NoError(t, err)
	assert.False(t, last.IsZero())

	r.err = errors.New("mongo down")
	m.RunOnce()
	_, err = m.LastRun()
	assert.EqualError(t, err, "mongo down")
}

func TestStart_InvalidSpec(t *testing.T) {
	m := NewSchedulerManager(&countingRefresher{}, "every tuesday", time.Second)
	assert.Error(t, m.Start())
}

func TestStart_SchedulesNext(t *testing.T) {
	m := NewSchedulerManager(&countingRefresher{}, "@hourly", time.Second)
	assert.True(t, m.Next().IsZero())
	require.NoError(t, m.Start())
	defer m.Stop()
	next := m.Next()
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(time.Hour+time.Minute)))
}
