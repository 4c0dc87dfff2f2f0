package request

// AskRequest POST /ask
type AskRequest struct {
	Question string `json:"question"`
}

// RefreshIndexRequest since 为 RFC3339，空表示从上次刷新时间开始
type RefreshIndexRequest struct {
	Since string `json:"since,omitempty"`
}

// GraphSearchRequest 直接查询关系图
type GraphSearchRequest struct {
	Question string `json:"question" binding:"required"`
}

// RecordChangedRequest 手动投递一条记录变更事件
type RecordChangedRequest struct {
	Collection string `json:"collection" binding:"required"`
	RecordKey  string `json:"record_key,omitempty"`
}
