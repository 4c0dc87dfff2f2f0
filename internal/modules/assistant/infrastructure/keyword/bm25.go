package keyword

import (
	"math"
	"sort"
	"sync"

	"ShopSage/internal/modules/assistant/domain/document"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Hit 一条关键词命中
type Hit struct {
	Doc   document.Projected
	Score float64
	// Order 文档在构建时的插入序号
	Order int
}

type entry struct {
	doc    document.Projected
	tf     map[string]int
	length int
}

// Index 内存 BM25 索引。Build 整体替换，Query 可并发调用。
type Index struct {
	k1 float64
	b  float64

	mu      sync.RWMutex
	entries []entry
	df      map[string]int
	avgdl   float64
}

func NewIndex() *Index {
	return &Index{k1: DefaultK1, b: DefaultB, df: map[string]int{}}
}

// Build 用给定文档重建索引
func (ix *Index) Build(docs []document.Projected) {
	entries := make([]entry, 0, len(docs))
	df := make(map[string]int)
	total := 0
	for _, d := range docs {
		toks := Tokenize(d.Content)
		tf := make(map[string]int, len(toks))
		for _, t := range toks {
			tf[t]++
		}
		for t := range tf {
			df[t]++
		}
		total += len(toks)
		entries = append(entries, entry{doc: d, tf: tf, length: len(toks)})
	}
	avgdl := 0.0
	if len(entries) > 0 {
		avgdl = float64(total) / float64(len(entries))
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.df = df
	ix.avgdl = avgdl
	ix.mu.Unlock()
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// idf = ln(1 + (N - n + 0.5) / (n + 0.5))，恒为正
func idf(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

// Query 返回得分最高的 k 个文档；k <= 0 表示不限制。得分为 0 的文档不返回，同分按插入顺序。
func (ix *Index) Query(text string, k int) []Hit {
	terms := uniq(Tokenize(text))
	if len(terms) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.entries)
	if n == 0 {
		return nil
	}

	weights := make(map[string]float64, len(terms))
	for _, t := range terms {
		if df, ok := ix.df[t]; ok {
			weights[t] = idf(n, df)
		}
	}
	if len(weights) == 0 {
		return nil
	}

	hits := make([]Hit, 0)
	for i, e := range ix.entries {
		score := 0.0
		norm := 1.0
		if ix.avgdl > 0 {
			norm = 1 - ix.b + ix.b*float64(e.length)/ix.avgdl
		}
		for t, w := range weights {
			f := float64(e.tf[t])
			if f == 0 {
				continue
			}
			score += w * f * (ix.k1 + 1) / (f + ix.k1*norm)
		}
		if score > 0 {
			hits = append(hits, Hit{Doc: e.doc, Score: score, Order: i})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Order < hits[b].Order
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
