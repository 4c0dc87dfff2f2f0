package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher 增量刷新入口
type Refresher interface {
	RefreshSince(ctx context.Context, since time.Time) (*respond.RefreshRespond, error)
}

// SchedulerManager 按 cron 表达式周期性增量刷新索引
type SchedulerManager struct {
	cron      *cron.Cron
	refresher Refresher
	spec      string
	timeout   time.Duration

	mu      sync.Mutex
	entryID cron.EntryID
	lastRun time.Time
	lastErr error
}

// NewSchedulerManager spec 为标准 5 段表达式或 @hourly 等描述符
func NewSchedulerManager(refresher Refresher, spec string, timeout time.Duration) *SchedulerManager {
	if strings.TrimSpace(spec) == "" {
		spec = "@hourly"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &SchedulerManager{
		// 上一次刷新未结束时跳过本轮
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		refresher: refresher,
		spec:      spec,
		timeout:   timeout,
	}
}

func (m *SchedulerManager) Start() error {
	id, err := m.cron.AddFunc(m.spec, m.RunOnce)
	if err != nil {
		return fmt.Errorf("cron schedule %q: %w", m.spec, err)
	}
	m.mu.Lock()
	m.entryID = id
	m.mu.Unlock()
	m.cron.Start()
	zlog.Info("index refresh scheduler started", zap.String("spec", m.spec))
	return nil
}

// Stop 等待正在执行的刷新结束
func (m *SchedulerManager) Stop() {
	<-m.cron.Stop().Done()
	zlog.Info("index refresh scheduler stopped")
}

// RunOnce 执行一次刷新，错误只记录
func (m *SchedulerManager) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	res, err := m.refresher.RefreshSince(ctx, time.Time{})

	m.mu.Lock()
	m.lastRun = start
	m.lastErr = err
	m.mu.Unlock()

	if err != nil {
		zlog.Error("scheduled refresh failed", zap.Error(err))
		return
	}
	zlog.Info("scheduled refresh done",
		zap.Int("records", res.Records),
		zap.Int("chunks", res.Chunks),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
}

// Next 下一次触发时间，未启动时为零值
func (m *SchedulerManager) Next() time.Time {
	m.mu.Lock()
	id := m.entryID
	m.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return m.cron.Entry(id).Next
}

func (m *SchedulerManager) LastRun() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun, m.lastErr
}
