package chunking

import (
	"context"
	"fmt"
	"sync"

	"ShopSage/internal/modules/assistant/domain/document"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	einodoc "github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// Chunker 将投影文档切成带重叠的片段
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
	useRecursive bool

	initOnce      sync.Once
	initErr       error
	recursiveImpl einodoc.Transformer
}

// NewWindowChunker 固定 rune 窗口切分
func NewWindowChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 300
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{ChunkSize: size, ChunkOverlap: overlap}
}

// NewRecursiveChunker 先按换行/空格等分隔符切，再控制长度
func NewRecursiveChunker(size, overlap int) *Chunker {
	c := NewWindowChunker(size, overlap)
	c.useRecursive = true
	return c
}

// New 按配置名选择切分方式：window | recursive
func New(kind string, size, overlap int) *Chunker {
	if kind == "recursive" {
		return NewRecursiveChunker(size, overlap)
	}
	return NewWindowChunker(size, overlap)
}

// Split 基于 rune 数量切分文本，多字节字符不会被截断
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return []string{}
	}

	runes := []rune(text)
	total := len(runes)
	if total <= c.ChunkSize {
		return []string{text}
	}

	step := c.ChunkSize - c.ChunkOverlap
	if step <= 0 {
		step = 1
	}

	var chunks []string
	for i := 0; i < total; i += step {
		end := min(i+c.ChunkSize, total)
		chunks = append(chunks, string(runes[i:end]))
		if end == total {
			break
		}
	}
	return chunks
}

// ChunkDocuments 切分一批文档，片段元数据继承父文档并带 chunk_index
func (c *Chunker) ChunkDocuments(ctx context.Context, docs []document.Projected) ([]document.Chunk, error) {
	if len(docs) == 0 {
		return []document.Chunk{}, nil
	}

	if !c.useRecursive {
		out := make([]document.Chunk, 0, len(docs))
		for _, d := range docs {
			for i, p := range c.Split(d.Content) {
				out = append(out, newChunk(d, p, i))
			}
		}
		return out, nil
	}

	impl, err := c.splitter(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]document.Chunk, 0, len(docs))
	for _, d := range docs {
		if d.Content == "" {
			continue
		}
		frags, err := impl.Transform(ctx, []*schema.Document{{Content: d.Content}})
		if err != nil {
			return nil, fmt.Errorf("recursive split %s: %w", d.RecordKey(), err)
		}
		i := 0
		for _, f := range frags {
			if f == nil {
				continue
			}
			out = append(out, newChunk(d, f.Content, i))
			i++
		}
	}
	return out, nil
}

func (c *Chunker) splitter(ctx context.Context) (einodoc.Transformer, error) {
	c.initOnce.Do(func() {
		impl, err := recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   c.ChunkSize,
			OverlapSize: c.ChunkOverlap,
			Separators:  []string{"\n\n", "\n", " "},
			LenFunc: func(s string) int {
				return len([]rune(s))
			},
			KeepType: recursive.KeepTypeEnd,
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.recursiveImpl = impl
	})
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.recursiveImpl == nil {
		return nil, fmt.Errorf("recursive splitter not initialized")
	}
	return c.recursiveImpl, nil
}

func newChunk(parent document.Projected, content string, idx int) document.Chunk {
	meta := make(map[string]any, len(parent.Metadata)+1)
	for k, v := range parent.Metadata {
		meta[k] = v
	}
	meta[document.MetaChunkIndex] = idx
	return document.Chunk{Content: content, Metadata: meta}
}
