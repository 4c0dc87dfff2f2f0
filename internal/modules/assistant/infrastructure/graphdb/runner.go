package graphdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ShopSage/internal/config"
	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/pkg/zlog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Runner 执行 Cypher 并返回记录；由 main 显式创建和关闭
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Close(ctx context.Context) error
}

// Neo4jRunner 每次查询使用独立 session
type Neo4jRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jRunner 创建驱动并验证连通性，不可达时返回 ErrConnectivity
func NewNeo4jRunner(ctx context.Context, conf config.Neo4jConfig) (*Neo4jRunner, error) {
	uri := strings.TrimSpace(conf.URI)
	if uri == "" {
		return nil, fmt.Errorf("%w: neo4j uri is empty", apperr.ErrConnectivity)
	}

	timeout := time.Duration(conf.ConnectTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(conf.Username, conf.Password, ""),
		func(c *neo4j.Config) {
			if conf.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = conf.MaxConnectionPoolSize
			}
			if conf.MaxConnLifetimeSecs > 0 {
				c.MaxConnectionLifetime = time.Duration(conf.MaxConnLifetimeSecs) * time.Second
			}
			c.SocketConnectTimeout = timeout
			c.ConnectionAcquisitionTimeout = timeout
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrConnectivity, err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", apperr.ErrConnectivity, err)
	}

	zlog.Info("neo4j connected", zap.String("uri", uri), zap.String("database", conf.Database))
	return &Neo4jRunner{driver: driver, database: conf.Database}, nil
}

func (r *Neo4jRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.AsMap())
	}
	return out, nil
}

func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ Runner = (*Neo4jRunner)(nil)
