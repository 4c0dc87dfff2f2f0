package http

import (
	"net/http"

	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/application/service"
	"ShopSage/pkg/xerr"
	"ShopSage/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AssistantHandler 问答接口；响应体为扁平 JSON，不走 back 信封
type AssistantHandler struct {
	svc service.AskService
}

func NewAssistantHandler(svc service.AskService) *AssistantHandler {
	return &AssistantHandler{svc: svc}
}

// Ask 召回并生成回答
//
// 路由: POST /ask
// 请求体: {"question": "..."}
// 响应体: {"question": "...", "answer": "..."} 或 {"error": "..."}
func (h *AssistantHandler) Ask(c *gin.Context) {
	var req request.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("ask bind error", zap.Error(err))
		c.JSON(http.StatusBadRequest, respond.ErrorRespond{Error: xerr.ErrParam.Message})
		return
	}
	data, err := h.svc.Ask(c.Request.Context(), req)
	if err != nil {
		zlog.Error("ask failed", zap.String("question", req.Question), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Test 只跑生成阶段，用于检查模型配置
//
// 路由: GET /test
func (h *AssistantHandler) Test(c *gin.Context) {
	data, err := h.svc.Test(c.Request.Context())
	if err != nil {
		zlog.Error("test generation failed", zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// writeError CodeError 的码即 HTTP 状态码
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	if ce, ok := xerr.As(err); ok {
		status = ce.Code
		msg = ce.Message
	}
	c.JSON(status, respond.ErrorRespond{Error: msg})
}
