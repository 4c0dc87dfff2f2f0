package vectordb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"ShopSage/internal/modules/assistant/domain/document"
	"ShopSage/internal/modules/assistant/domain/repository"

	"github.com/philippgille/chromem-go"
)

// ChromemStore 基于 chromem-go 的本地向量库，path 为空时只在内存中
type ChromemStore struct {
	db   *chromem.DB
	name string

	mu   sync.RWMutex
	coll *chromem.Collection
}

// 向量由上游 embedder 计算，collection 不应自行调用 embedding
func noEmbed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("chromem: embeddings must be supplied by caller")
}

func NewChromemStore(path string, compress bool, collection string) (*ChromemStore, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("collection is empty")
	}
	var (
		db  *chromem.DB
		err error
	)
	if strings.TrimSpace(path) == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db %s: %w", path, err)
		}
	}
	coll, err := db.GetOrCreateCollection(collection, nil, noEmbed)
	if err != nil {
		return nil, err
	}
	return &ChromemStore{db: db, name: collection, coll: coll}, nil
}

func NewMemoryChromemStore(collection string) *ChromemStore {
	s, err := NewChromemStore("", false, collection)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *ChromemStore) collection() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll
}

func (s *ChromemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(s.name); err != nil {
		return err
	}
	coll, err := s.db.GetOrCreateCollection(s.name, nil, noEmbed)
	if err != nil {
		return err
	}
	s.coll = coll
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, items []repository.VectorItem) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			return errors.New("upsert item missing ID")
		}
		meta := make(map[string]string, len(it.Metadata)+3)
		for k, v := range it.Metadata {
			meta[k] = v
		}
		meta[document.MetaCollection] = it.Collection
		meta[document.MetaRecordKey] = it.RecordKey
		meta[document.MetaSeq] = strconv.FormatInt(it.Seq, 10)
		docs = append(docs, chromem.Document{
			ID:        it.ID,
			Metadata:  meta,
			Embedding: it.Vector,
			Content:   it.Content,
		})
	}
	return s.collection().AddDocuments(ctx, docs, runtime.NumCPU())
}

func (s *ChromemStore) DeleteByRecordKeys(ctx context.Context, keys []string) error {
	coll := s.collection()
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := coll.Delete(ctx, map[string]string{document.MetaRecordKey: k}, nil); err != nil {
			return fmt.Errorf("delete record_key=%s: %w", k, err)
		}
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, vector []float32, topK int) ([]repository.VectorHit, error) {
	coll := s.collection()
	n := coll.Count()
	if topK <= 0 {
		topK = 4
	}
	if topK > n {
		topK = n
	}
	if topK == 0 {
		return []repository.VectorHit{}, nil
	}

	res, err := coll.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, err
	}
	hits := make([]repository.VectorHit, 0, len(res))
	for _, r := range res {
		seq, _ := strconv.ParseInt(r.Metadata[document.MetaSeq], 10, 64)
		hits = append(hits, repository.VectorHit{
			ID:         r.ID,
			Score:      r.Similarity,
			Content:    r.Content,
			Collection: r.Metadata[document.MetaCollection],
			RecordKey:  r.Metadata[document.MetaRecordKey],
			Seq:        seq,
			Metadata:   r.Metadata,
		})
	}
	return hits, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection().Count(), nil
}

var _ repository.VectorStore = (*ChromemStore)(nil)
