package repository

import "context"

// VectorItem 向量写入项
type VectorItem struct {
	ID         string
	Vector     []float32
	Content    string
	Collection string
	RecordKey  string
	Seq        int64
	Metadata   map[string]string
}

type VectorHit struct {
	ID         string
	Score      float32
	Content    string
	Collection string
	RecordKey  string
	Seq        int64
	Metadata   map[string]string
}

// VectorStore 语义索引的存储后端（chromem 目录或 Milvus 集合）
type VectorStore interface {
	// Reset 清空全部向量
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, items []VectorItem) error
	// DeleteByRecordKeys 删除指定记录的全部片段
	DeleteByRecordKeys(ctx context.Context, keys []string) error
	Search(ctx context.Context, vector []float32, topK int) ([]VectorHit, error)
	Count(ctx context.Context) (int, error)
}
