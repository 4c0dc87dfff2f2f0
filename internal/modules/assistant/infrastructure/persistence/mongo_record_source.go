package persistence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ShopSage/internal/modules/assistant/domain/repository"
	"ShopSage/internal/modules/assistant/domain/source"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRecordSourceImpl struct {
	db      *mongo.Database
	tsField string
}

// NewMongoRecordSource tsField 为增量刷新使用的时间戳字段
func NewMongoRecordSource(db *mongo.Database, tsField string) repository.RecordSource {
	if tsField == "" {
		tsField = "last_updated"
	}
	return &mongoRecordSourceImpl{db: db, tsField: tsField}
}

func (r *mongoRecordSourceImpl) FetchAll(ctx context.Context, collection string) ([]source.Record, error) {
	return r.find(ctx, collection, bson.M{})
}

func (r *mongoRecordSourceImpl) FetchSince(ctx context.Context, collection string, since time.Time) ([]source.Record, error) {
	return r.find(ctx, collection, bson.M{r.tsField: bson.M{"$gte": since}})
}

func (r *mongoRecordSourceImpl) find(ctx context.Context, collection string, filter bson.M) ([]source.Record, error) {
	opts := options.Find().SetProjection(projection(collection, r.tsField))
	cur, err := r.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out []source.Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		fields := make(map[string]any, len(doc))
		for k, v := range doc {
			fields[k] = normalize(v)
		}
		out = append(out, source.New(collection, fields))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// projection 只取投影需要的字段，_id 默认返回
func projection(collection, tsField string) bson.M {
	p := bson.M{tsField: 1}
	for _, f := range source.Fields[collection] {
		p[f] = 1
	}
	return p
}

// normalize 把 BSON 专有类型转换成普通 Go 值
func normalize(v any) any {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Decimal128:
		if f, err := strconv.ParseFloat(x.String(), 64); err == nil {
			return f
		}
		return x.String()
	case primitive.A:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalize(x[i])
		}
		return out
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []byte:
		return string(x)
	default:
		return v
	}
}
