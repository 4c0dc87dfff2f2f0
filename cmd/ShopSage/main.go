package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	https_server "ShopSage/api/http"
	"ShopSage/internal/config"
	"ShopSage/internal/initial"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置与日志
	conf := config.GetConfig()
	if err := zlog.Init(zlog.Options{LogPath: conf.LogConfig.LogPath, Level: conf.LogConfig.Level}); err != nil {
		zlog.Warn("init file logger failed, console only", zap.Error(err))
	}
	defer func() { _ = zlog.Sync() }()

	// 2. 加载索引、连接图库与模型；任何一步失败都终止启动
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	assistant, err := initial.NewAssistant(ctx, conf)
	cancel()
	if err != nil {
		zlog.Fatal("startup failed", zap.Error(err))
	}

	// 3. 启动 HTTP 服务
	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
	srv := &http.Server{Addr: addr, Handler: https_server.NewEngine(assistant)}
	go func() {
		zlog.Info("server starting", zap.String("addr", addr), zap.Bool("tls", conf.MainConfig.EnableTLS))
		var err error
		if conf.MainConfig.EnableTLS {
			err = srv.ListenAndServeTLS(conf.MainConfig.CertFile, conf.MainConfig.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	// 4. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
	assistant.Close(shutdownCtx)
	zlog.Info("server stopped")
}
