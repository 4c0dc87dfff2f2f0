package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/infrastructure/mq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefresher) RefreshSince(ctx context.Context, since time.Time) (*respond.RefreshRespond, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return &respond.RefreshRespond{}, nil
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func changed(collection string) mq.Message {
	msg, _ := mq.ChangeEvent{Collection: collection}.Encode("changes")
	return msg
}

func TestChangeHandler_Debounces(t *testing.T) {
	r := &countingRefresher{}
	h := NewChangeHandler(r, 50*time.Millisecond)
	defer h.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Handle(context.Background(), changed("inventories")))
	}
	require.NoError(t, h.Handle(context.Background(), changed("shops")))

	assert.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, r.count())

	require.NoError(t, h.Handle(context.Background(), changed("users")))
	assert.Eventually(t, func() bool { return r.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestChangeHandler_IgnoresUnknown(t *testing.T) {
	r := &countingRefresher{}
	h := NewChangeHandler(r, 20*time.Millisecond)
	defer h.Close()

	assert.NoError(t, h.Handle(context.Background(), changed("payments")))
	assert.NoError(t, h.Handle(context.Background(), mq.Message{}))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, r.count())
}

func TestChangeHandler_Close(t *testing.T) {
	r := &countingRefresher{}
	h := NewChangeHandler(r, 30*time.Millisecond)
	require.NoError(t, h.Handle(context.Background(), changed("inventories")))
	h.Close()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, r.count())
	assert.ErrorIs(t, h.Handle(context.Background(), changed("shops")), errHandlerClosed)
}
