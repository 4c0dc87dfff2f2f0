package semantic

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/document"
	"ShopSage/internal/modules/assistant/domain/repository"
	"ShopSage/internal/modules/assistant/domain/source"
	"ShopSage/internal/modules/assistant/infrastructure/chunking"
	localembed "ShopSage/internal/modules/assistant/infrastructure/embedding"
	"ShopSage/internal/modules/assistant/infrastructure/projector"
	"ShopSage/pkg/zlog"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"
)

type Options struct {
	BatchSize     int
	MinScore      float32
	RefreshWindow time.Duration
	Collections   []string
	Now           func() time.Time
}

// Hit 语义检索结果
type Hit struct {
	ID         string
	Content    string
	Collection string
	RecordKey  string
	Score      float32
	Seq        int64
}

type BuildStats struct {
	Documents int
	Chunks    int
	Reused    bool
}

type RefreshStats struct {
	Since   time.Time
	Records int
	Chunks  int
}

// Manager 语义索引：构建、加载、增量刷新、查询。
// 写操作（Build/Refresh）由 writeMu 串行化；向量计算在锁外进行，只有写入向量库时短暂阻塞读。
type Manager struct {
	store     repository.VectorStore
	embedder  embedding.Embedder
	chunker   *chunking.Chunker
	manifests *ManifestFile
	opts      Options

	writeMu  sync.Mutex
	rw       sync.RWMutex
	manifest *Manifest
}

func NewManager(store repository.VectorStore, embedder embedding.Embedder, chunker *chunking.Chunker, manifests *ManifestFile, opts Options) *Manager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.RefreshWindow <= 0 {
		opts.RefreshWindow = time.Hour
	}
	if len(opts.Collections) == 0 {
		opts.Collections = source.Collections
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if chunker == nil {
		chunker = chunking.NewWindowChunker(300, 30)
	}
	if manifests == nil {
		manifests = NewManifestFile("")
	}
	return &Manager{store: store, embedder: embedder, chunker: chunker, manifests: manifests, opts: opts}
}

// FetchAll 依次读取各集合全部记录
func FetchAll(ctx context.Context, src repository.RecordSource, collections []string) ([]source.Record, error) {
	var out []source.Record
	for _, c := range collections {
		recs, err := src.FetchAll(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", c, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

// Build 全量重建：投影、切分、向量化，清空后写入。
// fetchedAt 为读取 records 之前的时间，作为 refreshed_at，之后修改的记录由下一次增量刷新补上；零值取当前时间。
func (m *Manager) Build(ctx context.Context, records []source.Record, fetchedAt time.Time) (BuildStats, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	start := time.Now()
	docs := projector.ProjectAll(records)
	chunks, err := m.chunker.ChunkDocuments(ctx, docs)
	if err != nil {
		return BuildStats{}, err
	}
	vecs, err := m.embed(ctx, chunks)
	if err != nil {
		return BuildStats{}, err
	}
	items := toItems(chunks, vecs, 0)

	if fetchedAt.IsZero() {
		fetchedAt = m.opts.Now()
	}
	manifest := Manifest{NextSeq: int64(len(items)), Chunks: len(items), BuiltAt: fetchedAt, RefreshedAt: fetchedAt}

	m.rw.Lock()
	err = m.store.Reset(ctx)
	if err == nil {
		err = m.store.Upsert(ctx, items)
	}
	if err == nil {
		m.manifest = &manifest
	}
	m.rw.Unlock()
	if err != nil {
		return BuildStats{}, fmt.Errorf("write vector store: %w", err)
	}
	if err := m.manifests.Save(manifest); err != nil {
		return BuildStats{}, fmt.Errorf("save manifest: %w", err)
	}

	zlog.Info("semantic index built",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(items)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return BuildStats{Documents: len(docs), Chunks: len(items)}, nil
}

// Load 已有索引且 manifest 存在时直接复用，否则从运营库全量构建
func (m *Manager) Load(ctx context.Context, src repository.RecordSource) (BuildStats, error) {
	n, err := m.store.Count(ctx)
	if err != nil {
		zlog.Warn("semantic index count failed, rebuilding", zap.Error(err))
		n = 0
	}
	if n > 0 {
		mf, err := m.manifests.Load()
		if err != nil {
			zlog.Warn("semantic manifest unreadable, rebuilding", zap.Error(err))
		}
		if mf != nil {
			m.rw.Lock()
			m.manifest = mf
			m.rw.Unlock()
			zlog.Info("semantic index loaded", zap.Int("chunks", n), zap.Time("refreshed_at", mf.RefreshedAt))
			return BuildStats{Chunks: n, Reused: true}, nil
		}
	}

	fetchedAt := m.opts.Now()
	records, err := FetchAll(ctx, src, m.opts.Collections)
	if err != nil {
		return BuildStats{}, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	stats, err := m.Build(ctx, records, fetchedAt)
	if err != nil {
		return BuildStats{}, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return stats, nil
}

// Refresh 增量刷新：读取时间戳 >= since 的记录，替换这些记录之前的片段。
// since 为零值时取 manifest 的 refreshed_at，没有则取 now - RefreshWindow。
func (m *Manager) Refresh(ctx context.Context, src repository.RecordSource, since time.Time) (RefreshStats, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	started := m.opts.Now()
	m.rw.RLock()
	current := m.manifest
	m.rw.RUnlock()
	if current == nil {
		mf, err := m.manifests.Load()
		if err != nil {
			return RefreshStats{}, err
		}
		current = mf
	}
	if since.IsZero() {
		if current != nil && !current.RefreshedAt.IsZero() {
			since = current.RefreshedAt
		} else {
			since = started.Add(-m.opts.RefreshWindow)
		}
	}

	var records []source.Record
	for _, c := range m.opts.Collections {
		recs, err := src.FetchSince(ctx, c, since)
		if err != nil {
			return RefreshStats{}, fmt.Errorf("fetch %s since %s: %w", c, since.Format(time.RFC3339), err)
		}
		records = append(records, recs...)
	}

	next := Manifest{BuiltAt: started, RefreshedAt: started}
	if current != nil {
		next = *current
		next.RefreshedAt = started
	}
	if len(records) == 0 {
		return m.commitManifest(next, RefreshStats{Since: since})
	}

	docs := projector.ProjectAll(records)
	chunks, err := m.chunker.ChunkDocuments(ctx, docs)
	if err != nil {
		return RefreshStats{}, err
	}
	vecs, err := m.embed(ctx, chunks)
	if err != nil {
		return RefreshStats{}, err
	}
	items := toItems(chunks, vecs, next.NextSeq)

	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		if k := d.RecordKey(); k != "" {
			keys = append(keys, k)
		}
	}

	m.rw.Lock()
	err = m.store.DeleteByRecordKeys(ctx, keys)
	if err == nil {
		err = m.store.Upsert(ctx, items)
	}
	m.rw.Unlock()
	if err != nil {
		return RefreshStats{}, fmt.Errorf("write vector store: %w", err)
	}

	next.NextSeq += int64(len(items))
	if n, err := m.store.Count(ctx); err == nil {
		next.Chunks = n
	}
	stats := RefreshStats{Since: since, Records: len(records), Chunks: len(items)}
	zlog.Info("semantic index refreshed",
		zap.Time("since", since),
		zap.Int("records", len(records)),
		zap.Int("chunks", len(items)))
	return m.commitManifest(next, stats)
}

func (m *Manager) commitManifest(next Manifest, stats RefreshStats) (RefreshStats, error) {
	m.rw.Lock()
	m.manifest = &next
	m.rw.Unlock()
	if err := m.manifests.Save(next); err != nil {
		return stats, fmt.Errorf("save manifest: %w", err)
	}
	return stats, nil
}

// Query 对问题做向量检索，过滤低于 MinScore 的结果，按分数降序、同分按写入顺序
func (m *Manager) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 4
	}
	vecs, err := m.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	m.rw.RLock()
	raw, err := m.store.Search(ctx, localembed.ToFloat32(vecs[0]), k)
	m.rw.RUnlock()
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(raw))
	for _, r := range raw {
		if m.opts.MinScore > 0 && r.Score < m.opts.MinScore {
			continue
		}
		hits = append(hits, Hit{
			ID:         r.ID,
			Content:    r.Content,
			Collection: r.Collection,
			RecordKey:  r.RecordKey,
			Score:      r.Score,
			Seq:        r.Seq,
		})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Seq < hits[b].Seq
	})
	return hits, nil
}

// Manifest 当前 manifest 快照
func (m *Manager) Manifest() (Manifest, bool) {
	m.rw.RLock()
	defer m.rw.RUnlock()
	if m.manifest == nil {
		return Manifest{}, false
	}
	return *m.manifest, true
}

func (m *Manager) embed(ctx context.Context, chunks []document.Chunk) ([][]float32, error) {
	out := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += m.opts.BatchSize {
		end := min(i+m.opts.BatchSize, len(chunks))
		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Content)
		}
		vecs, err := m.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks [%d,%d): %w", i, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed chunks [%d,%d): got %d vectors", i, end, len(vecs))
		}
		for _, v := range vecs {
			out = append(out, localembed.ToFloat32(v))
		}
	}
	return out, nil
}

func chunkID(c document.Chunk) string {
	return c.Collection() + ":" + c.RecordKey() + "#" + strconv.Itoa(c.Index())
}

func toItems(chunks []document.Chunk, vecs [][]float32, startSeq int64) []repository.VectorItem {
	items := make([]repository.VectorItem, 0, len(chunks))
	for i, c := range chunks {
		meta := map[string]string{
			document.MetaChunkIndex: strconv.Itoa(c.Index()),
		}
		if name, ok := c.Metadata[document.MetaName].(string); ok {
			meta[document.MetaName] = name
		}
		if typ, ok := c.Metadata[document.MetaType].(string); ok {
			meta[document.MetaType] = typ
		}
		id := chunkID(c)
		if c.RecordKey() == "" {
			id = fmt.Sprintf("%s:seq%d", c.Collection(), startSeq+int64(i))
		}
		items = append(items, repository.VectorItem{
			ID:         id,
			Vector:     vecs[i],
			Content:    c.Content,
			Collection: c.Collection(),
			RecordKey:  c.RecordKey(),
			Seq:        startSeq + int64(i),
			Metadata:   meta,
		})
	}
	return items
}
