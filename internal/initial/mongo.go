package initial

import (
	"context"
	"fmt"
	"time"

	"ShopSage/internal/config"
	"ShopSage/pkg/zlog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// NewMongoDatabase 连接运营库并 ping 一次；调用方负责 Disconnect
func NewMongoDatabase(ctx context.Context, conf *config.Config) (*mongo.Client, *mongo.Database, error) {
	mc := conf.MongoConfig
	timeout := time.Duration(mc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(mc.URI).
		SetAppName(conf.AppName).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	zlog.Info("mongo connected", zap.String("database", mc.DatabaseName))
	return client, client.Database(mc.DatabaseName), nil
}
