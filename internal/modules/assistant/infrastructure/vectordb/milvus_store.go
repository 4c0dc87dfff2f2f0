package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ShopSage/internal/modules/assistant/domain/repository"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const milvusVectorField = "vector"

var milvusOutputFields = []string{"collection", "record_key", "seq", "content", "metadata"}

// MilvusStore Milvus 集合作为语义索引后端
type MilvusStore struct {
	cli         mclient.Client
	collection  string
	metricType  entity.MetricType
	vectorDim   int
	searchParam entity.SearchParam
}

func NewMilvusStore(cli mclient.Client, collection string, vectorDim int, metricType entity.MetricType) (*MilvusStore, error) {
	if cli == nil {
		return nil, errors.New("milvus client is nil")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("collection is empty")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vectorDim: %d", vectorDim)
	}
	if metricType == "" {
		metricType = entity.COSINE
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	return &MilvusStore{cli: cli, collection: collection, metricType: metricType, vectorDim: vectorDim, searchParam: sp}, nil
}

// milvusSchema 片段的集合结构
func milvusSchema(collection string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: collection,
		Description:    "ShopSage business document chunks",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       milvusVectorField,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{entity.TypeParamDim: strconv.Itoa(dim)},
			},
			{Name: "collection", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "32"}},
			{Name: "record_key", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "64"}},
			{Name: "seq", DataType: entity.FieldTypeInt64},
			{Name: "content", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "4096"}},
			{Name: "metadata", DataType: entity.FieldTypeJSON},
		},
	}
}

// EnsureCollection 集合不存在时建表建索引，然后加载
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	has, err := s.cli.HasCollection(ctx, s.collection)
	if err != nil {
		return err
	}
	if !has {
		if err := s.cli.CreateCollection(ctx, milvusSchema(s.collection, s.vectorDim), entity.DefaultShardNumber); err != nil {
			return err
		}
		idx, err := entity.NewIndexAUTOINDEX(s.metricType)
		if err != nil {
			return err
		}
		if err := s.cli.CreateIndex(ctx, s.collection, milvusVectorField, idx, false); err != nil {
			return err
		}
	}
	return s.cli.LoadCollection(ctx, s.collection, false)
}

func (s *MilvusStore) Reset(ctx context.Context) error {
	has, err := s.cli.HasCollection(ctx, s.collection)
	if err != nil {
		return err
	}
	if has {
		if err := s.cli.DropCollection(ctx, s.collection); err != nil {
			return err
		}
	}
	return s.EnsureCollection(ctx)
}

func (s *MilvusStore) Upsert(ctx context.Context, items []repository.VectorItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	vectors := make([][]float32, 0, len(items))
	colls := make([]string, 0, len(items))
	keys := make([]string, 0, len(items))
	seqs := make([]int64, 0, len(items))
	contents := make([]string, 0, len(items))
	metas := make([][]byte, 0, len(items))

	for _, it := range items {
		if it.ID == "" {
			return errors.New("upsert item missing ID")
		}
		if len(it.Vector) != s.vectorDim {
			return fmt.Errorf("vector dim mismatch for id=%s, got=%d want=%d", it.ID, len(it.Vector), s.vectorDim)
		}
		meta, err := json.Marshal(it.Metadata)
		if err != nil {
			return err
		}
		ids = append(ids, it.ID)
		vectors = append(vectors, it.Vector)
		colls = append(colls, it.Collection)
		keys = append(keys, it.RecordKey)
		seqs = append(seqs, it.Seq)
		contents = append(contents, it.Content)
		metas = append(metas, meta)
	}

	_, err := s.cli.Upsert(
		ctx,
		s.collection,
		"",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(milvusVectorField, s.vectorDim, vectors),
		entity.NewColumnVarChar("collection", colls),
		entity.NewColumnVarChar("record_key", keys),
		entity.NewColumnInt64("seq", seqs),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnJSONBytes("metadata", metas),
	)
	if err != nil {
		return err
	}
	return s.cli.Flush(ctx, s.collection, false)
}

func (s *MilvusStore) DeleteByRecordKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	quoted := make([]string, 0, len(keys))
	for _, k := range keys {
		quoted = append(quoted, strconv.Quote(k))
	}
	expr := fmt.Sprintf("record_key in [%s]", strings.Join(quoted, ","))
	return s.cli.Delete(ctx, s.collection, "", expr)
}

func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int) ([]repository.VectorHit, error) {
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("vector dim mismatch, got=%d want=%d", len(vector), s.vectorDim)
	}
	if topK <= 0 {
		topK = 4
	}
	res, err := s.cli.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		milvusVectorField,
		s.metricType,
		topK,
		s.searchParam,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return []repository.VectorHit{}, nil
	}
	return parseSearchResult(res[0])
}

func (s *MilvusStore) Count(ctx context.Context) (int, error) {
	stats, err := s.cli.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("parse row_count: %w", err)
	}
	return n, nil
}

func parseSearchResult(sr mclient.SearchResult) ([]repository.VectorHit, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}
	hits := make([]repository.VectorHit, 0, sr.ResultCount)

	collCol := columnByName(sr.Fields, "collection")
	keyCol := columnByName(sr.Fields, "record_key")
	seqCol := columnByName(sr.Fields, "seq")
	contentCol := columnByName(sr.Fields, "content")
	metaCol := columnByName(sr.Fields, "metadata")

	for i := 0; i < sr.ResultCount; i++ {
		id, _ := sr.IDs.GetAsString(i)
		h := repository.VectorHit{ID: id}
		if i < len(sr.Scores) {
			h.Score = sr.Scores[i]
		}
		if collCol != nil {
			h.Collection, _ = collCol.GetAsString(i)
		}
		if keyCol != nil {
			h.RecordKey, _ = keyCol.GetAsString(i)
		}
		if seqCol != nil {
			h.Seq, _ = seqCol.GetAsInt64(i)
		}
		if contentCol != nil {
			h.Content, _ = contentCol.GetAsString(i)
		}
		if metaCol != nil {
			v, _ := metaCol.Get(i)
			if bs, ok := v.([]byte); ok {
				_ = json.Unmarshal(bs, &h.Metadata)
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

var _ repository.VectorStore = (*MilvusStore)(nil)
