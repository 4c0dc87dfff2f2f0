package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ShopSage/internal/modules/assistant/domain/document"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/pkg/util"
	"ShopSage/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// answerState 节点间传递的中间状态
type answerState struct {
	Req        *AnswerRequest
	QueryID    string
	Evidence   document.Evidence
	Intent     graphdb.Intent
	Reply      *schema.Message
	Answer     string
	Start      time.Time
	RetrieveMs int64
	LLMMs      int64
	Err        error
}

// buildGraph 节点顺序：Retrieve → Generate → Finalize
func (p *AnswerPipeline) buildGraph(ctx context.Context) (compose.Runnable[*AnswerRequest, *AnswerResult], error) {
	const (
		Retrieve = "Retrieve"
		Generate = "Generate"
		Finalize = "Finalize"
	)
	g := compose.NewGraph[*AnswerRequest, *AnswerResult]()
	_ = g.AddLambdaNode(Retrieve, compose.InvokableLambdaWithOption(p.retrieveNode), compose.WithNodeName(Retrieve))
	_ = g.AddLambdaNode(Generate, compose.InvokableLambdaWithOption(p.generateNode), compose.WithNodeName(Generate))
	_ = g.AddLambdaNode(Finalize, compose.InvokableLambdaWithOption(p.finalizeNode), compose.WithNodeName(Finalize))
	_ = g.AddEdge(compose.START, Retrieve)
	_ = g.AddEdge(Retrieve, Generate)
	_ = g.AddEdge(Generate, Finalize)
	_ = g.AddEdge(Finalize, compose.END)
	return g.Compile(ctx, compose.WithGraphName("AnswerPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// retrieveNode 节点 1：混合召回，并记录用户问题
func (p *AnswerPipeline) retrieveNode(ctx context.Context, req *AnswerRequest, _ ...any) (*answerState, error) {
	st := &answerState{
		Req:     req,
		Start:   time.Now(),
		QueryID: fmt.Sprintf("q_%s", util.GenerateShortUUID()),
	}
	if req == nil {
		st.Req = &AnswerRequest{}
		st.Err = fmt.Errorf("answer request is nil")
		return st, nil
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		st.Err = ErrEmptyQuestion
		return st, nil
	}

	p.memory.AddUser(req.Question)

	res := p.retriever.Retrieve(ctx, req.Question)
	st.Evidence = res.Evidence
	st.Intent = res.Intent
	st.RetrieveMs = time.Since(st.Start).Milliseconds()

	zlog.Info("answer retrieve done",
		zap.String("query_id", st.QueryID),
		zap.String("intent", string(st.Intent)),
		zap.Int("blocks", len(st.Evidence.All())),
		zap.Int64("retrieve_ms", st.RetrieveMs))
	return st, nil
}

// generateNode 节点 2：渲染模板并调用模型
func (p *AnswerPipeline) generateNode(ctx context.Context, st *answerState, _ ...any) (*answerState, error) {
	if st == nil {
		return &answerState{Req: &AnswerRequest{}, Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}
	msgs, err := renderPrompt(ctx, p.tpl, p.opts.ContactPhone, promptData(st.Evidence), st.Req.Question)
	if err != nil {
		st.Err = fmt.Errorf("render prompt: %w", err)
		return st, nil
	}
	llmStart := time.Now()
	reply, err := p.generate(ctx, msgs)
	st.LLMMs = time.Since(llmStart).Milliseconds()
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.Reply = reply
	text, err := messageText(reply)
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.Answer = text
	p.memory.AddAssistant(text)

	zlog.Info("answer generate done",
		zap.String("query_id", st.QueryID),
		zap.Int("prompt_msgs", len(msgs)),
		zap.Int64("llm_ms", st.LLMMs))
	return st, nil
}

// finalizeNode 节点 3：组装结果
func (p *AnswerPipeline) finalizeNode(ctx context.Context, st *answerState, _ ...any) (*AnswerResult, error) {
	_ = ctx
	if st == nil {
		return &AnswerResult{Err: fmt.Errorf("nil state")}, nil
	}
	res := &AnswerResult{
		QueryID:    st.QueryID,
		Question:   st.Req.Question,
		Answer:     st.Answer,
		Evidence:   st.Evidence,
		Intent:     st.Intent,
		RetrieveMs: st.RetrieveMs,
		LLMMs:      st.LLMMs,
		DurationMs: time.Since(st.Start).Milliseconds(),
		Err:        st.Err,
	}
	if st.Err != nil {
		logFailure(st)
		return res, nil
	}
	zlog.Info("answer pipeline done",
		zap.String("query_id", res.QueryID),
		zap.Int("answer_len", len(res.Answer)),
		zap.Int64("duration_ms", res.DurationMs))
	return res, nil
}
