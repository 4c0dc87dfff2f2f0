package fusion

import (
	"math"
	"sort"
)

// Scored 单个召回源中的一条结果
type Scored struct {
	Collection string
	Content    string
	Score      float64
}

// Key 用于跨召回源去重
func (s Scored) Key() string {
	return s.Collection + "\x00" + s.Content
}

// Fuse 加权融合多个有序列表。每个列表先按本列表最高分归一化（score / max），
// 融合分 = Σ weight × 归一化分，缺席记 0；同一列表中重复出现的条目只取最高分。
// 同分时依次比较权重更高的列表中的名次，最后按首次出现顺序。
func Fuse(lists [][]Scored, weights []float64) []Scored {
	type agg struct {
		item  Scored
		score float64
		parts []float64
		ranks []int
		first int
	}

	// 权重从高到低的列表顺序，权重相同保持原顺序
	order := make([]int, len(lists))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return weightAt(weights, order[a]) > weightAt(weights, order[b])
	})

	byKey := map[string]*agg{}
	var seen []*agg
	for li, list := range lists {
		maxScore := 0.0
		for _, s := range list {
			maxScore = math.Max(maxScore, s.Score)
		}
		w := weightAt(weights, li)
		for rank, s := range list {
			a, ok := byKey[s.Key()]
			if !ok {
				a = &agg{item: s, parts: make([]float64, len(lists)), ranks: make([]int, len(lists)), first: len(seen)}
				for i := range a.ranks {
					a.ranks[i] = math.MaxInt
				}
				byKey[s.Key()] = a
				seen = append(seen, a)
			}
			if rank < a.ranks[li] {
				a.ranks[li] = rank
			}
			if maxScore > 0 {
				a.parts[li] = math.Max(a.parts[li], w*s.Score/maxScore)
			}
		}
	}
	for _, a := range seen {
		for _, p := range a.parts {
			a.score += p
		}
	}

	sort.SliceStable(seen, func(i, j int) bool {
		if seen[i].score != seen[j].score {
			return seen[i].score > seen[j].score
		}
		for _, li := range order {
			if seen[i].ranks[li] != seen[j].ranks[li] {
				return seen[i].ranks[li] < seen[j].ranks[li]
			}
		}
		return seen[i].first < seen[j].first
	})

	out := make([]Scored, 0, len(seen))
	for _, a := range seen {
		it := a.item
		it.Score = a.score
		out = append(out, it)
	}
	return out
}

func weightAt(weights []float64, i int) float64 {
	if i < len(weights) {
		return weights[i]
	}
	return 0
}
