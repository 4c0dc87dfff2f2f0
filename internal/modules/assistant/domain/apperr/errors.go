package apperr

import "errors"

var (
	// ErrRetrievalFailure 单个召回源失败，只记录日志并降级为空结果
	ErrRetrievalFailure = errors.New("retrieval failure")
	// ErrIndexUnavailable 语义索引既无法加载也无法构建
	ErrIndexUnavailable = errors.New("semantic index unavailable")
	// ErrGenerationFailure 模型调用失败、超时或返回空内容
	ErrGenerationFailure = errors.New("generation failure")
	// ErrConnectivity 图数据库不可达
	ErrConnectivity = errors.New("graph store unreachable")
)
