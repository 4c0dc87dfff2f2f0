package main

import (
	"context"
	"time"

	"ShopSage/internal/config"
	"ShopSage/internal/initial"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

// 离线重建关系图：清空后从运营库重新导入
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

	runner, err := graphdb.NewNeo4jRunner(ctx, conf.Neo4jConfig)
	if err != nil {
		zlog.Fatal("connect graph store failed", zap.Error(err))
	}
	defer func() { _ = runner.Close(context.Background()) }()

	start := time.Now()
	counts, err := graphdb.NewBuilder(runner).Rebuild(ctx, src)
	if err != nil {
		zlog.Fatal("graph rebuild failed", zap.Error(err))
	}
	zlog.Info("graph rebuilt",
		zap.Int("products", counts.Products),
		zap.Int("shops", counts.Shops),
		zap.Int("users", counts.Users),
		zap.Int("invoices", counts.Invoices),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
}
