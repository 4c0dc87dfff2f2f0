package fusion

import (
	"context"
	"fmt"
	"time"

	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/document"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/internal/modules/assistant/infrastructure/keyword"
	"ShopSage/internal/modules/assistant/infrastructure/semantic"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const CollectionGraph = "graph"

type SemanticQuerier interface {
	Query(ctx context.Context, text string, k int) ([]semantic.Hit, error)
}

type KeywordQuerier interface {
	Query(text string, k int) []keyword.Hit
}

type GraphSearcher interface {
	Search(ctx context.Context, question string) ([]string, graphdb.Intent)
}

type Options struct {
	SemanticK      int
	KeywordK       int
	SemanticWeight float64
	KeywordWeight  float64
	// Merged 为 true 时额外输出融合后的 Fused 列表
	Merged        bool
	SourceTimeout time.Duration
}

// Result 一次召回的证据与图查询意图
type Result struct {
	Evidence document.Evidence
	Intent   graphdb.Intent
}

// Retriever 并发调用各召回源；单个源失败只降级为空列表
type Retriever struct {
	semantic SemanticQuerier
	keyword  KeywordQuerier
	graph    GraphSearcher
	opts     Options
}

// NewRetriever 某个源传 nil 表示不启用
func NewRetriever(sem SemanticQuerier, kw KeywordQuerier, graph GraphSearcher, opts Options) *Retriever {
	if opts.SemanticK <= 0 {
		opts.SemanticK = 4
	}
	if opts.KeywordK <= 0 {
		opts.KeywordK = 4
	}
	if opts.SemanticWeight <= 0 && opts.KeywordWeight <= 0 {
		opts.SemanticWeight, opts.KeywordWeight = 0.6, 0.4
	}
	return &Retriever{semantic: sem, keyword: kw, graph: graph, opts: opts}
}

// FormatEvidence 证据块格式：[collection: X]\n内容
func FormatEvidence(collection, content string) string {
	if collection == "" {
		collection = "unknown"
	}
	return fmt.Sprintf("[collection: %s]\n%s", collection, content)
}

func (r *Retriever) Retrieve(ctx context.Context, question string) Result {
	var (
		semHits   []Scored
		kwHits    []Scored
		graphHits []string
		intent    = graphdb.Classify(question)
	)

	var g errgroup.Group
	if r.semantic != nil {
		g.Go(func() error {
			sctx, cancel := r.sourceContext(ctx)
			defer cancel()
			start := time.Now()
			hits, err := r.semantic.Query(sctx, question, r.opts.SemanticK)
			if err != nil {
				zlog.Warn("semantic retrieval failed",
					zap.Error(fmt.Errorf("%w: %v", apperr.ErrRetrievalFailure, err)))
				return nil
			}
			for _, h := range hits {
				semHits = append(semHits, Scored{Collection: h.Collection, Content: h.Content, Score: float64(h.Score)})
			}
			zlog.Debug("semantic retrieval done", zap.Int("hits", len(semHits)), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
			return nil
		})
	}
	if r.keyword != nil {
		g.Go(func() error {
			for _, h := range r.keyword.Query(question, r.opts.KeywordK) {
				kwHits = append(kwHits, Scored{Collection: h.Doc.Collection(), Content: h.Doc.Content, Score: h.Score})
			}
			return nil
		})
	}
	if r.graph != nil {
		g.Go(func() error {
			gctx, cancel := r.sourceContext(ctx)
			defer cancel()
			blocks, in := r.graph.Search(gctx, question)
			graphHits = blocks
			intent = in
			return nil
		})
	}
	_ = g.Wait()

	ev := document.Evidence{
		Semantic: formatAll(semHits),
		Keyword:  formatAll(kwHits),
	}
	for _, b := range graphHits {
		ev.Graph = append(ev.Graph, FormatEvidence(CollectionGraph, b))
	}
	if r.opts.Merged {
		k := max(r.opts.SemanticK, r.opts.KeywordK)
		fused := Fuse([][]Scored{semHits, kwHits}, []float64{r.opts.SemanticWeight, r.opts.KeywordWeight})
		if len(fused) > k {
			fused = fused[:k]
		}
		ev.Fused = formatAll(fused)
	}

	zlog.Info("hybrid retrieval done",
		zap.Int("semantic", len(ev.Semantic)),
		zap.Int("keyword", len(ev.Keyword)),
		zap.Int("graph", len(ev.Graph)),
		zap.Int("fused", len(ev.Fused)),
		zap.String("intent", string(intent)))
	return Result{Evidence: ev, Intent: intent}
}

func (r *Retriever) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.SourceTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.SourceTimeout)
	}
	return context.WithCancel(ctx)
}

func formatAll(items []Scored) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, FormatEvidence(it.Collection, it.Content))
	}
	return out
}
