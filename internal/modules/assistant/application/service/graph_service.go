package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/repository"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/pkg/xerr"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

type GraphRebuilder interface {
	Rebuild(ctx context.Context, src repository.RecordSource) (graphdb.BuildCounts, error)
}

type GraphSearcher interface {
	Search(ctx context.Context, question string) ([]string, graphdb.Intent)
}

type GraphService interface {
	Rebuild(ctx context.Context) (*respond.GraphRebuildRespond, error)
	Search(ctx context.Context, question string) (*respond.GraphSearchRespond, error)
}

type graphServiceImpl struct {
	src      repository.RecordSource
	builder  GraphRebuilder
	searcher GraphSearcher
}

// NewGraphService 图库未启用时 builder 与 searcher 传 nil
func NewGraphService(src repository.RecordSource, builder GraphRebuilder, searcher GraphSearcher) GraphService {
	return &graphServiceImpl{src: src, builder: builder, searcher: searcher}
}

var errGraphDisabled = xerr.New(xerr.ServiceUnavailable, "graph store is not enabled")

func (s *graphServiceImpl) Rebuild(ctx context.Context) (*respond.GraphRebuildRespond, error) {
	if s.builder == nil {
		return nil, errGraphDisabled
	}
	start := time.Now()
	counts, err := s.builder.Rebuild(ctx, s.src)
	if err != nil {
		zlog.Error("graph rebuild failed", zap.Error(err))
		if errors.Is(err, apperr.ErrConnectivity) {
			return nil, xerr.Wrap(xerr.ServiceUnavailable, "graph store unreachable", err)
		}
		return nil, xerr.Wrap(xerr.InternalServerError, "graph rebuild failed", err)
	}
	return &respond.GraphRebuildRespond{BuildCounts: counts, DurationMs: time.Since(start).Milliseconds()}, nil
}

func (s *graphServiceImpl) Search(ctx context.Context, question string) (*respond.GraphSearchRespond, error) {
	if s.searcher == nil {
		return nil, errGraphDisabled
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, xerr.New(xerr.BadRequest, "question is required")
	}
	blocks, intent := s.searcher.Search(ctx, question)
	if blocks == nil {
		blocks = []string{}
	}
	return &respond.GraphSearchRespond{Intent: intent, Blocks: blocks}, nil
}
