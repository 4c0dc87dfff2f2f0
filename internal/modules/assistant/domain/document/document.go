package document

// 元数据键
const (
	MetaCollection = "collection"
	MetaName       = "name"
	MetaPrice      = "price"
	MetaRecordKey  = "record_key"
	MetaType       = "type"
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaSeq        = "seq"
)

// SourceDatabase 投影文档的 source 元数据
const SourceDatabase = "database"

// Projected 一条运营记录的可检索文本形式，重建索引时重新生成
type Projected struct {
	Content  string
	Metadata map[string]any
}

func (d Projected) Collection() string {
	s, _ := d.Metadata[MetaCollection].(string)
	return s
}

func (d Projected) RecordKey() string {
	s, _ := d.Metadata[MetaRecordKey].(string)
	return s
}

// Chunk 切分后的片段，元数据继承父文档并带上 chunk_index
type Chunk struct {
	Content  string
	Metadata map[string]any
}

func (c Chunk) Collection() string {
	s, _ := c.Metadata[MetaCollection].(string)
	return s
}

func (c Chunk) RecordKey() string {
	s, _ := c.Metadata[MetaRecordKey].(string)
	return s
}

func (c Chunk) Index() int {
	i, _ := c.Metadata[MetaChunkIndex].(int)
	return i
}

// Evidence 一次召回的证据集合
type Evidence struct {
	Semantic []string
	Keyword  []string
	Graph    []string
	Fused    []string
}

// All 按 semantic、keyword、graph 顺序拼接
func (e Evidence) All() []string {
	out := make([]string, 0, len(e.Semantic)+len(e.Keyword)+len(e.Graph))
	out = append(out, e.Semantic...)
	out = append(out, e.Keyword...)
	out = append(out, e.Graph...)
	return out
}

func (e Evidence) Empty() bool {
	return len(e.Semantic) == 0 && len(e.Keyword) == 0 && len(e.Graph) == 0 && len(e.Fused) == 0
}
