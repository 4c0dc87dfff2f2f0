package persistence

import (
	"context"
	"fmt"
	"time"

	"ShopSage/internal/modules/assistant/domain/repository"
	"ShopSage/internal/modules/assistant/domain/source"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQL 表沿用集合名，主键列为 id
const mysqlIDColumn = "id"

type gormRecordSourceImpl struct {
	db      *gorm.DB
	tsField string
}

func NewGormRecordSource(db *gorm.DB, tsField string) repository.RecordSource {
	if tsField == "" {
		tsField = "last_updated"
	}
	return &gormRecordSourceImpl{db: db, tsField: tsField}
}

func (r *gormRecordSourceImpl) FetchAll(ctx context.Context, collection string) ([]source.Record, error) {
	return r.find(ctx, collection, nil)
}

func (r *gormRecordSourceImpl) FetchSince(ctx context.Context, collection string, since time.Time) ([]source.Record, error) {
	return r.find(ctx, collection, clause.Gte{Column: clause.Column{Name: r.tsField}, Value: since})
}

func (r *gormRecordSourceImpl) find(ctx context.Context, collection string, cond clause.Expression) ([]source.Record, error) {
	q := r.db.WithContext(ctx).Table(collection).Select(columns(collection, r.tsField))
	if cond != nil {
		q = q.Where(cond)
	}
	var rows []map[string]any
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	out := make([]source.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, source.New(collection, rowFields(row)))
	}
	return out, nil
}

func columns(collection, tsField string) []string {
	cols := []string{mysqlIDColumn, tsField}
	return append(cols, source.Fields[collection]...)
}

// rowFields id 列映射为 _id
func rowFields(row map[string]any) map[string]any {
	fields := make(map[string]any, len(row))
	for k, v := range row {
		if k == mysqlIDColumn {
			k = source.FieldID
		}
		fields[k] = normalize(v)
	}
	return fields
}
