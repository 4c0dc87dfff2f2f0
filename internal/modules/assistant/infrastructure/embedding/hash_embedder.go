package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"ShopSage/internal/modules/assistant/infrastructure/keyword"

	"github.com/cloudwego/eino/components/embedding"
)

// HashEmbedder 本地词袋哈希向量，无需外部模型；用于离线开发和测试。
// 最后一维固定为偏置项，保证向量非零。
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim < 2 {
		dim = 256
	}
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buckets := h.Dim - 1
	result := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, h.Dim)
		for _, tok := range keyword.Tokenize(text) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(tok))
			vec[int(f.Sum32()%uint32(buckets))] += 1
		}
		vec[buckets] = 0.5
		norm := 0.0
		for _, v := range vec {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		for j := range vec {
			vec[j] /= norm
		}
		result[i] = vec
	}
	return result, nil
}

var _ embedding.Embedder = (*HashEmbedder)(nil)

// ToFloat32 eino 返回 float64，向量库使用 float32
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
