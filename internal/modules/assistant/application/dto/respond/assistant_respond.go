package respond

import (
	"time"

	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/internal/modules/assistant/infrastructure/memory"
)

type AskRespond struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type TestRespond struct {
	Response string `json:"response"`
}

// ErrorRespond /ask 与 /test 的失败响应
type ErrorRespond struct {
	Error string `json:"error"`
}

type RefreshRespond struct {
	Since       time.Time `json:"since"`
	Records     int       `json:"records"`
	Chunks      int       `json:"chunks"`
	KeywordDocs int       `json:"keyword_docs"`
	DurationMs  int64     `json:"duration_ms"`
}

type RebuildRespond struct {
	Documents   int   `json:"documents"`
	Chunks      int   `json:"chunks"`
	KeywordDocs int   `json:"keyword_docs"`
	DurationMs  int64 `json:"duration_ms"`
}

type IndexStatusRespond struct {
	SemanticEnabled bool       `json:"semantic_enabled"`
	KeywordEnabled  bool       `json:"keyword_enabled"`
	Chunks          int        `json:"chunks"`
	NextSeq         int64      `json:"next_seq"`
	BuiltAt         *time.Time `json:"built_at,omitempty"`
	RefreshedAt     *time.Time `json:"refreshed_at,omitempty"`
	KeywordDocs     int        `json:"keyword_docs"`
}

type GraphRebuildRespond struct {
	graphdb.BuildCounts
	DurationMs int64 `json:"duration_ms"`
}

type GraphSearchRespond struct {
	Intent graphdb.Intent `json:"intent"`
	Blocks []string       `json:"blocks"`
}

type MemoryRespond struct {
	Turns []memory.Turn `json:"turns"`
}

type RecordChangedRespond struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}
