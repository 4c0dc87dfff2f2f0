package http

import (
	"strings"

	"ShopSage/internal/initial"
	jwtMiddleware "ShopSage/internal/middleware/jwt"
	"ShopSage/internal/modules/assistant/infrastructure/mcpserver"
	assistantHandler "ShopSage/internal/modules/assistant/interface/http"
	"ShopSage/pkg/ssl"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
)

// NewEngine 注册全部路由；组件由 initial.NewAssistant 创建
func NewEngine(a *initial.Assistant) *gin.Engine {
	conf := a.Conf
	GE := gin.New()
	GE.Use(gin.Logger(), gin.Recovery())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	GE.Use(cors.New(corsConfig))
	if conf.MainConfig.EnableTLS {
		GE.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))
	}

	askH := assistantHandler.NewAssistantHandler(a.AskSvc)
	adminH := assistantHandler.NewAdminHandler(a.IndexSvc, a.GraphSvc, a.AskSvc, a.ChangeSvc)

	GE.POST("/ask", askH.Ask)
	GE.GET("/test", askH.Test)

	admin := GE.Group("/admin")
	admin.Use(jwtMiddleware.Auth(a.Signer))
	admin.POST("/index/refresh", adminH.RefreshIndex)
	admin.POST("/index/rebuild", adminH.RebuildIndex)
	admin.GET("/index/status", adminH.IndexStatus)
	admin.POST("/graph/rebuild", adminH.RebuildGraph)
	admin.POST("/graph/search", adminH.SearchGraph)
	admin.GET("/memory", adminH.Memory)
	admin.POST("/records/changed", adminH.RecordChanged)

	if conf.MCPConfig.Enabled {
		mcpSrv := mcpserver.NewServer(mcpserver.ServerConfig{
			Name:    conf.MCPConfig.Name,
			Version: conf.MCPConfig.Version,
		}, a.AskSvc, a.GraphSvc)
		opts := []server.SSEOption{server.WithStaticBasePath("/mcp")}
		if base := strings.TrimSpace(conf.MCPConfig.BaseURL); base != "" {
			opts = append(opts, server.WithBaseURL(base))
		}
		sse := server.NewSSEServer(mcpSrv, opts...)
		GE.GET("/mcp/sse", gin.WrapH(sse.SSEHandler()))
		GE.POST("/mcp/message", gin.WrapH(sse.MessageHandler()))
	}
	return GE
}
