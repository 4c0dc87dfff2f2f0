package main

import (
	"context"
	"os"
	"time"

	"ShopSage/internal/config"
	"ShopSage/internal/initial"
	"ShopSage/internal/modules/assistant/domain/source"
	"ShopSage/internal/modules/assistant/infrastructure/semantic"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

// 一次性维护语义索引：默认增量刷新（从上次刷新时间起），参数 rebuild 时全量重建
func main() {
	conf := config.GetConfig()
	if err := zlog.Init(zlog.Options{LogPath: conf.LogConfig.LogPath, Level: conf.LogConfig.Level}); err != nil {
		zlog.Warn("init file logger failed, console only", zap.Error(err))
	}
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	src, closeSrc, err := initial.NewRecordSource(ctx, conf)
	if err != nil {
		zlog.Fatal("open operational store failed", zap.Error(err))
	}
	defer func() { _ = closeSrc(context.Background()) }()

	mgr, closeStore, err := initial.NewSemanticManager(ctx, conf)
	if err != nil {
		zlog.Fatal("open semantic index failed", zap.Error(err))
	}
	if closeStore != nil {
		defer func() { _ = closeStore(context.Background()) }()
	}

	if len(os.Args) > 1 && os.Args[1] == "rebuild" {
		fetchedAt := time.Now()
		records, err := semantic.FetchAll(ctx, src, source.Collections)
		if err != nil {
			zlog.Fatal("read operational store failed", zap.Error(err))
		}
		stats, err := mgr.Build(ctx, records, fetchedAt)
		if err != nil {
			zlog.Fatal("rebuild failed", zap.Error(err))
		}
		zlog.Info("semantic index rebuilt", zap.Int("documents", stats.Documents), zap.Int("chunks", stats.Chunks))
		return
	}

	if _, err := mgr.Load(ctx, src); err != nil {
		zlog.Fatal("load semantic index failed", zap.Error(err))
	}
	stats, err := mgr.Refresh(ctx, src, time.Time{})
	if err != nil {
		zlog.Fatal("refresh failed", zap.Error(err))
	}
	zlog.Info("semantic index refreshed",
		zap.Time("since", stats.Since),
		zap.Int("records", stats.Records),
		zap.Int("chunks", stats.Chunks))
}
