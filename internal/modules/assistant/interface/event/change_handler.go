package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/infrastructure/mq"
	"ShopSage/internal/modules/assistant/infrastructure/projector"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

type Refresher interface {
	RefreshSince(ctx context.Context, since time.Time) (*respond.RefreshRespond, error)
}

// ChangeHandler 消费记录变更事件；一段静默期内的多条事件合并为一次增量刷新
type ChangeHandler struct {
	refresher Refresher
	debounce  time.Duration
	timeout   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]int
	closed  bool
	wg      sync.WaitGroup
}

func NewChangeHandler(refresher Refresher, debounce time.Duration) *ChangeHandler {
	if debounce <= 0 {
		debounce = 10 * time.Second
	}
	return &ChangeHandler{
		refresher: refresher,
		debounce:  debounce,
		timeout:   10 * time.Minute,
		pending:   map[string]int{},
	}
}

// Handle 实现 mq.Handler；无法解析或未知集合的消息直接确认
func (h *ChangeHandler) Handle(ctx context.Context, msg mq.Message) error {
	ev, err := mq.DecodeChangeEvent(msg)
	if err != nil {
		zlog.Warn("drop change event", zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}
	if !projector.Supported(ev.Collection) {
		zlog.Debug("ignore change event for unindexed collection", zap.String("collection", ev.Collection))
		return nil
	}
	return h.schedule(ev.Collection)
}

var errHandlerClosed = errors.New("change handler closed")

func (h *ChangeHandler) schedule(collection string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHandlerClosed
	}
	h.pending[collection]++
	if h.timer != nil {
		h.timer.Reset(h.debounce)
		return nil
	}
	h.timer = time.AfterFunc(h.debounce, h.fire)
	return nil
}

func (h *ChangeHandler) fire() {
	h.mu.Lock()
	if h.closed || len(h.pending) == 0 {
		h.mu.Unlock()
		return
	}
	pending := h.pending
	h.pending = map[string]int{}
	h.timer = nil
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	collections := make([]string, 0, len(pending))
	events := 0
	for c, n := range pending {
		collections = append(collections, c)
		events += n
	}
	sort.Strings(collections)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	res, err := h.refresher.RefreshSince(ctx, time.Time{})
	if err != nil {
		zlog.Error("change-triggered refresh failed",
			zap.Strings("collections", collections),
			zap.Error(err))
		return
	}
	zlog.Info("change-triggered refresh done",
		zap.Strings("collections", collections),
		zap.Int("events", events),
		zap.Int("records", res.Records),
		zap.Int("chunks", res.Chunks))
}

// Close 取消尚未触发的刷新，并等待进行中的刷新结束
func (h *ChangeHandler) Close() {
	h.mu.Lock()
	h.closed = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.mu.Unlock()
	h.wg.Wait()
}
