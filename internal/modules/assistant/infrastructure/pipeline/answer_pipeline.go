package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/document"
	"ShopSage/internal/modules/assistant/infrastructure/fusion"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/internal/modules/assistant/infrastructure/memory"
	"ShopSage/pkg/zlog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const defaultGenerateTimeout = 60 * time.Second

var ErrEmptyQuestion = errors.New("missing question")

// Retriever 混合召回
type Retriever interface {
	Retrieve(ctx context.Context, question string) fusion.Result
}

// AnswerRequest 问答 Pipeline 输入
type AnswerRequest struct {
	Question string
}

// AnswerResult 问答 Pipeline 输出
type AnswerResult struct {
	QueryID    string
	Question   string
	Answer     string
	Evidence   document.Evidence
	Intent     graphdb.Intent
	RetrieveMs int64
	LLMMs      int64
	DurationMs int64
	Err        error
}

type Options struct {
	ContactPhone    string
	GenerateTimeout time.Duration
}

// AnswerPipeline Retrieve → Generate → Finalize
type AnswerPipeline struct {
	retriever Retriever
	chatModel model.BaseChatModel
	memory    *memory.Buffer
	tpl       prompt.ChatTemplate
	opts      Options
	r         compose.Runnable[*AnswerRequest, *AnswerResult]
}

// NewAnswerPipeline mem 可为 nil
func NewAnswerPipeline(retriever Retriever, chatModel model.BaseChatModel, mem *memory.Buffer, opts Options) (*AnswerPipeline, error) {
	if retriever == nil || chatModel == nil {
		return nil, fmt.Errorf("required dependencies are nil")
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = defaultGenerateTimeout
	}
	if strings.TrimSpace(opts.ContactPhone) == "" {
		opts.ContactPhone = DefaultContactPhone
	}
	p := &AnswerPipeline{
		retriever: retriever,
		chatModel: chatModel,
		memory:    mem,
		tpl:       newTemplate(),
		opts:      opts,
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Answer 执行一次完整问答；生成失败时返回 ErrGenerationFailure
func (p *AnswerPipeline) Answer(ctx context.Context, question string) (*AnswerResult, error) {
	if p.r == nil {
		return nil, fmt.Errorf("pipeline runnable is nil")
	}
	res, err := p.r.Invoke(ctx, &AnswerRequest{Question: question})
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}

// GenerateOnly 跳过召回，直接用给定数据生成回答
func (p *AnswerPipeline) GenerateOnly(ctx context.Context, data, question string) (string, error) {
	msgs, err := renderPrompt(ctx, p.tpl, p.opts.ContactPhone, data, question)
	if err != nil {
		return "", fmt.Errorf("%w: render prompt: %v", apperr.ErrGenerationFailure, err)
	}
	msg, err := p.generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return messageText(msg)
}

// Memory 会话记忆
func (p *AnswerPipeline) Memory() *memory.Buffer {
	return p.memory
}

// generate 在独立 goroutine 中调用模型，受 GenerateTimeout 约束
func (p *AnswerPipeline) generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	gctx, cancel := context.WithTimeout(ctx, p.opts.GenerateTimeout)
	defer cancel()

	type out struct {
		msg *schema.Message
		err error
	}
	ch := make(chan out, 1)
	go func() {
		msg, err := p.chatModel.Generate(gctx, msgs)
		ch <- out{msg: msg, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrGenerationFailure, o.err)
		}
		return o.msg, nil
	case <-gctx.Done():
		return nil, fmt.Errorf("%w: %w", apperr.ErrGenerationFailure, gctx.Err())
	}
}

func messageText(msg *schema.Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("%w: empty response", apperr.ErrGenerationFailure)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", apperr.ErrGenerationFailure)
	}
	return text, nil
}

// promptData 融合列表存在时用它替代 semantic/keyword 两段
func promptData(ev document.Evidence) string {
	blocks := ev.All()
	if len(ev.Fused) > 0 {
		blocks = append(append([]string{}, ev.Fused...), ev.Graph...)
	}
	return strings.Join(blocks, "\n\n")
}

func logFailure(st *answerState) {
	zlog.Error("answer pipeline failed",
		zap.String("query_id", st.QueryID),
		zap.String("question", st.Req.Question),
		zap.Error(st.Err))
}
