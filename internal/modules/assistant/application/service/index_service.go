package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/document"
	"ShopSage/internal/modules/assistant/domain/repository"
	"ShopSage/internal/modules/assistant/domain/source"
	"ShopSage/internal/modules/assistant/infrastructure/projector"
	"ShopSage/internal/modules/assistant/infrastructure/semantic"
	"ShopSage/pkg/xerr"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

// SemanticIndex 持久化的向量索引
type SemanticIndex interface {
	Load(ctx context.Context, src repository.RecordSource) (semantic.BuildStats, error)
	Build(ctx context.Context, records []source.Record, fetchedAt time.Time) (semantic.BuildStats, error)
	Refresh(ctx context.Context, src repository.RecordSource, since time.Time) (semantic.RefreshStats, error)
	Manifest() (semantic.Manifest, bool)
}

// KeywordIndex 进程内 BM25 索引
type KeywordIndex interface {
	Build(docs []document.Projected)
	Len() int
}

type IndexService interface {
	// Load 启动时加载或构建语义索引，并构建关键词索引
	Load(ctx context.Context) error
	Refresh(ctx context.Context, req request.RefreshIndexRequest) (*respond.RefreshRespond, error)
	// RefreshSince since 为零值时使用上次刷新时间
	RefreshSince(ctx context.Context, since time.Time) (*respond.RefreshRespond, error)
	Rebuild(ctx context.Context) (*respond.RebuildRespond, error)
	Status() *respond.IndexStatusRespond
}

type indexServiceImpl struct {
	src      repository.RecordSource
	semantic SemanticIndex
	keyword  KeywordIndex
}

// NewIndexService 未启用的索引传 nil
func NewIndexService(src repository.RecordSource, sem SemanticIndex, kw KeywordIndex) IndexService {
	return &indexServiceImpl{src: src, semantic: sem, keyword: kw}
}

func (s *indexServiceImpl) Load(ctx context.Context) error {
	start := time.Now()
	if s.semantic != nil {
		stats, err := s.semantic.Load(ctx, s.src)
		if err != nil {
			return err
		}
		zlog.Info("semantic index ready",
			zap.Bool("reused", stats.Reused),
			zap.Int("chunks", stats.Chunks))
	}
	n, err := s.rebuildKeyword(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: keyword index: %v", apperr.ErrIndexUnavailable, err)
	}
	zlog.Info("indexes loaded",
		zap.Int("keyword_docs", n),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

func (s *indexServiceImpl) Refresh(ctx context.Context, req request.RefreshIndexRequest) (*respond.RefreshRespond, error) {
	var since time.Time
	if raw := strings.TrimSpace(req.Since); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, xerr.Wrap(xerr.BadRequest, "since must be RFC3339", err)
		}
		since = t
	}
	return s.RefreshSince(ctx, since)
}

func (s *indexServiceImpl) RefreshSince(ctx context.Context, since time.Time) (*respond.RefreshRespond, error) {
	start := time.Now()
	res := &respond.RefreshRespond{Since: since}
	if s.semantic != nil {
		stats, err := s.semantic.Refresh(ctx, s.src, since)
		if err != nil {
			return nil, xerr.Wrap(xerr.InternalServerError, "refresh semantic index failed", err)
		}
		res.Since = stats.Since
		res.Records = stats.Records
		res.Chunks = stats.Chunks
	}
	n, err := s.rebuildKeyword(ctx, nil)
	if err != nil {
		return nil, xerr.Wrap(xerr.InternalServerError, "rebuild keyword index failed", err)
	}
	res.KeywordDocs = n
	res.DurationMs = time.Since(start).Milliseconds()
	zlog.Info("index refreshed",
		zap.Time("since", res.Since),
		zap.Int("records", res.Records),
		zap.Int("chunks", res.Chunks),
		zap.Int64("duration_ms", res.DurationMs))
	return res, nil
}

func (s *indexServiceImpl) Rebuild(ctx context.Context) (*respond.RebuildRespond, error) {
	start := time.Now()
	records, err := semantic.FetchAll(ctx, s.src, source.Collections)
	if err != nil {
		return nil, xerr.Wrap(xerr.ServiceUnavailable, "read operational store failed", err)
	}
	if records == nil {
		records = []source.Record{}
	}
	res := &respond.RebuildRespond{}
	if s.semantic != nil {
		stats, err := s.semantic.Build(ctx, records, start)
		if err != nil {
			return nil, xerr.Wrap(xerr.InternalServerError, "rebuild semantic index failed", err)
		}
		res.Documents = stats.Documents
		res.Chunks = stats.Chunks
	}
	n, err := s.rebuildKeyword(ctx, records)
	if err != nil {
		return nil, xerr.Wrap(xerr.InternalServerError, "rebuild keyword index failed", err)
	}
	res.KeywordDocs = n
	res.DurationMs = time.Since(start).Milliseconds()
	zlog.Info("index rebuilt",
		zap.Int("documents", res.Documents),
		zap.Int("chunks", res.Chunks),
		zap.Int("keyword_docs", n))
	return res, nil
}

func (s *indexServiceImpl) Status() *respond.IndexStatusRespond {
	st := &respond.IndexStatusRespond{
		SemanticEnabled: s.semantic != nil,
		KeywordEnabled:  s.keyword != nil,
	}
	if s.semantic != nil {
		if m, ok := s.semantic.Manifest(); ok {
			st.Chunks = m.Chunks
			st.NextSeq = m.NextSeq
			built, refreshed := m.BuiltAt, m.RefreshedAt
			st.BuiltAt = &built
			st.RefreshedAt = &refreshed
		}
	}
	if s.keyword != nil {
		st.KeywordDocs = s.keyword.Len()
	}
	return st
}

// rebuildKeyword records 为 nil 时重新读取运营库
func (s *indexServiceImpl) rebuildKeyword(ctx context.Context, records []source.Record) (int, error) {
	if s.keyword == nil {
		return 0, nil
	}
	if records == nil {
		var err error
		records, err = semantic.FetchAll(ctx, s.src, source.Collections)
		if err != nil {
			return 0, err
		}
	}
	docs := projector.ProjectAll(records)
	s.keyword.Build(docs)
	return len(docs), nil
}
