package initial

import (
	"context"
	"strings"

	"ShopSage/internal/config"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
)

// NewMilvusClient 连接 Milvus，目标库不存在时先创建；集合结构由 vectordb.MilvusStore 负责
func NewMilvusClient(ctx context.Context, conf *config.Config) (mclient.Client, error) {
	mc := conf.MilvusConfig
	dbName := strings.TrimSpace(mc.DBName)
	if dbName == "" {
		dbName = "shopsage"
	}

	defaultCli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  strings.TrimSpace(mc.Address),
		Username: strings.TrimSpace(mc.Username),
		Password: strings.TrimSpace(mc.Password),
		DBName:   "default",
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = defaultCli.Close() }()

	dbs, err := defaultCli.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	exists := false
	for _, db := range dbs {
		if db.Name == dbName {
			exists = true
			break
		}
	}
	if !exists {
		if err := defaultCli.CreateDatabase(ctx, dbName); err != nil {
			return nil, err
		}
	}

	return mclient.NewClient(ctx, mclient.Config{
		Address:  strings.TrimSpace(mc.Address),
		Username: strings.TrimSpace(mc.Username),
		Password: strings.TrimSpace(mc.Password),
		DBName:   dbName,
	})
}
