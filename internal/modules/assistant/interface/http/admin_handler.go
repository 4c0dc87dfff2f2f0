package http

import (
	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/application/service"
	"ShopSage/pkg/back"
	"ShopSage/pkg/xerr"
	"ShopSage/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler 索引与图库运维接口，需要 JWT
type AdminHandler struct {
	indexSvc  service.IndexService
	graphSvc  service.GraphService
	askSvc    service.AskService
	changeSvc service.ChangeService
}

func NewAdminHandler(indexSvc service.IndexService, graphSvc service.GraphService, askSvc service.AskService, changeSvc service.ChangeService) *AdminHandler {
	return &AdminHandler{indexSvc: indexSvc, graphSvc: graphSvc, askSvc: askSvc, changeSvc: changeSvc}
}

// RefreshIndex 增量刷新语义索引并重建关键词索引
//
// 路由: POST /admin/index/refresh
// 请求体: {"since": "RFC3339"}，可省略
func (h *AdminHandler) RefreshIndex(c *gin.Context) {
	var req request.RefreshIndexRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
			return
		}
	}
	data, err := h.indexSvc.Refresh(c.Request.Context(), req)
	if err != nil {
		zlog.Error("admin refresh index failed", zap.String("operator", c.GetString("operator")), zap.Error(err))
	}
	back.Result(c, data, err)
}

// RebuildIndex 全量重建
//
// 路由: POST /admin/index/rebuild
func (h *AdminHandler) RebuildIndex(c *gin.Context) {
	data, err := h.indexSvc.Rebuild(c.Request.Context())
	if err != nil {
		zlog.Error("admin rebuild index failed", zap.String("operator", c.GetString("operator")), zap.Error(err))
	}
	back.Result(c, data, err)
}

// IndexStatus 路由: GET /admin/index/status
func (h *AdminHandler) IndexStatus(c *gin.Context) {
	back.Success(c, h.indexSvc.Status())
}

// RebuildGraph 清空并重建关系图
//
// 路由: POST /admin/graph/rebuild
func (h *AdminHandler) RebuildGraph(c *gin.Context) {
	data, err := h.graphSvc.Rebuild(c.Request.Context())
	back.Result(c, data, err)
}

// SearchGraph 路由: POST /admin/graph/search
func (h *AdminHandler) SearchGraph(c *gin.Context) {
	var req request.GraphSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.graphSvc.Search(c.Request.Context(), req.Question)
	back.Result(c, data, err)
}

// Memory 路由: GET /admin/memory
func (h *AdminHandler) Memory(c *gin.Context) {
	back.Success(c, h.askSvc.Memory())
}

// RecordChanged 向变更主题投递一条记录变更
//
// 路由: POST /admin/records/changed
func (h *AdminHandler) RecordChanged(c *gin.Context) {
	var req request.RecordChangedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.changeSvc.Notify(c.Request.Context(), req)
	back.Result(c, data, err)
}
