package repository

import (
	"context"
	"time"

	"ShopSage/internal/modules/assistant/domain/source"
)

// RecordSource 运营库只读访问
type RecordSource interface {
	// FetchAll 读取集合全部记录
	FetchAll(ctx context.Context, collection string) ([]source.Record, error)
	// FetchSince 读取时间戳字段 >= since 的记录，没有该字段的记录不会返回
	FetchSince(ctx context.Context, collection string, since time.Time) ([]source.Record, error)
}
