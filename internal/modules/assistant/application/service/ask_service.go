package service

import (
	"context"
	"errors"
	"strings"

	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/infrastructure/memory"
	"ShopSage/internal/modules/assistant/infrastructure/pipeline"
	"ShopSage/pkg/xerr"
)

const (
	noResponseAnswer = "No response generated"
	testSampleData   = "Test Sinhala data"
	testQuestion     = "What does the retrieved data say?"
)

// Answerer 问答 Pipeline
type Answerer interface {
	Answer(ctx context.Context, question string) (*pipeline.AnswerResult, error)
	GenerateOnly(ctx context.Context, data, question string) (string, error)
	Memory() *memory.Buffer
}

type AskService interface {
	// Ask 召回 + 生成，返回问题与回答
	Ask(ctx context.Context, req request.AskRequest) (*respond.AskRespond, error)
	// Test 只跑生成阶段，用固定样例数据
	Test(ctx context.Context) (*respond.TestRespond, error)
	Memory() *respond.MemoryRespond
}

type askServiceImpl struct {
	answerer Answerer
}

func NewAskService(answerer Answerer) AskService {
	return &askServiceImpl{answerer: answerer}
}

func (s *askServiceImpl) Ask(ctx context.Context, req request.AskRequest) (*respond.AskRespond, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, xerr.New(xerr.BadRequest, "question is required")
	}
	res, err := s.answerer.Answer(ctx, question)
	if err != nil {
		return nil, classify(err)
	}
	answer := res.Answer
	if strings.TrimSpace(answer) == "" {
		answer = noResponseAnswer
	}
	return &respond.AskRespond{Question: question, Answer: answer}, nil
}

func (s *askServiceImpl) Test(ctx context.Context) (*respond.TestRespond, error) {
	out, err := s.answerer.GenerateOnly(ctx, testSampleData, testQuestion)
	if err != nil {
		return nil, classify(err)
	}
	return &respond.TestRespond{Response: out}, nil
}

func (s *askServiceImpl) Memory() *respond.MemoryRespond {
	turns := s.answerer.Memory().Turns()
	if turns == nil {
		turns = []memory.Turn{}
	}
	return &respond.MemoryRespond{Turns: turns}
}

// classify 将领域错误映射为带码错误，保留原始链路
func classify(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		return xerr.Wrap(xerr.BadRequest, "question is required", err)
	case errors.Is(err, context.DeadlineExceeded):
		return xerr.Wrap(xerr.GatewayTimeout, err.Error(), err)
	case errors.Is(err, apperr.ErrGenerationFailure):
		return xerr.Wrap(xerr.InternalServerError, err.Error(), err)
	case errors.Is(err, apperr.ErrIndexUnavailable), errors.Is(err, apperr.ErrConnectivity):
		return xerr.Wrap(xerr.ServiceUnavailable, err.Error(), err)
	}
	if _, ok := xerr.As(err); ok {
		return err
	}
	return xerr.Wrap(xerr.InternalServerError, err.Error(), err)
}
