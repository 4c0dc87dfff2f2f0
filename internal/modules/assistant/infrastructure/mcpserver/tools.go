package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/application/service"
	"ShopSage/pkg/zlog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const (
	ToolAsk         = "ask_business_question"
	ToolSearchGraph = "search_graph"
)

type ServerConfig struct {
	Name    string
	Version string
}

// ToolHandler 把问答与图查询暴露为 MCP 工具
type ToolHandler struct {
	askSvc   service.AskService
	graphSvc service.GraphService
}

func NewToolHandler(askSvc service.AskService, graphSvc service.GraphService) *ToolHandler {
	return &ToolHandler{askSvc: askSvc, graphSvc: graphSvc}
}

// NewServer 创建 MCP Server 并注册工具
func NewServer(conf ServerConfig, askSvc service.AskService, graphSvc service.GraphService) *server.MCPServer {
	s := server.NewMCPServer(conf.Name, conf.Version, server.WithToolCapabilities(true))
	NewToolHandler(askSvc, graphSvc).RegisterTools(s)
	return s
}

func (h *ToolHandler) RegisterTools(s *server.MCPServer) {
	if h.askSvc != nil {
		s.AddTool(mcp.NewTool(ToolAsk,
			mcp.WithDescription("Answer a question about products, shops, invoices or users using the indexed business data"),
			mcp.WithString("question", mcp.Required(), mcp.Description("natural-language question")),
		), h.handleAsk)
	}
	if h.graphSvc != nil {
		s.AddTool(mcp.NewTool(ToolSearchGraph,
			mcp.WithDescription("Look up products or shops in the relationship graph; questions mentioning a shop, store or location search shops"),
			mcp.WithString("question", mcp.Required(), mcp.Description("question or entity name")),
		), h.handleSearchGraph)
	}
}

func (h *ToolHandler) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, errRes := questionArg(req)
	if errRes != nil {
		return errRes, nil
	}
	res, err := h.askSvc.Ask(ctx, request.AskRequest{Question: question})
	if err != nil {
		zlog.Error("mcp ask failed", zap.String("question", question), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}
	return mcp.NewToolResultText(res.Answer), nil
}

func (h *ToolHandler) handleSearchGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, errRes := questionArg(req)
	if errRes != nil {
		return errRes, nil
	}
	res, err := h.graphSvc.Search(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph search failed: %v", err)), nil
	}
	if len(res.Blocks) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No %s matches found.", res.Intent)), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d):\n\n", res.Intent, len(res.Blocks))
	sb.WriteString(strings.Join(res.Blocks, "\n\n"))
	return mcp.NewToolResultText(sb.String()), nil
}

func questionArg(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return "", mcp.NewToolResultError("invalid arguments format, expected map")
	}
	q, _ := args["question"].(string)
	q = strings.TrimSpace(q)
	if q == "" {
		return "", mcp.NewToolResultError("question is required")
	}
	return q, nil
}
