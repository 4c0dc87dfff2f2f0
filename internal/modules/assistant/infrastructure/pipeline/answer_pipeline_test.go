package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/source"
	"ShopSage/internal/modules/assistant/infrastructure/chunking"
	"ShopSage/internal/modules/assistant/infrastructure/embedding"
	"ShopSage/internal/modules/assistant/infrastructure/fusion"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/internal/modules/assistant/infrastructure/keyword"
	"ShopSage/internal/modules/assistant/infrastructure/memory"
	"ShopSage/internal/modules/assistant/infrastructure/projector"
	"ShopSage/internal/modules/assistant/infrastructure/semantic"
	"ShopSage/internal/modules/assistant/infrastructure/vectordb"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel 记录收到的 prompt，返回固定内容
type fakeChatModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	prompts [][]*schema.Message
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, input)
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *fakeChatModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, msg := range m.prompts[len(m.prompts)-1] {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// cannedRunner 任意语句都返回同一批行
type cannedRunner struct {
	mu    sync.Mutex
	rows  []map[string]any
	err   error
	calls int
}

func (r *cannedRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.rows, nil
}

func (r *cannedRunner) Close(ctx context.Context) error { return nil }

var fixtures = []source.Record{
	source.New(source.CollectionInventories, map[string]any{
		"_id": "p1", "productName": "Cheese Koththu", "price": 1750, "productPrice": 1100,
	}),
	source.New(source.CollectionInventories, map[string]any{
		"_id": "p2", "productName": "Chicken Fried Rice", "price": 1200,
	}),
	source.New(source.CollectionShops, map[string]any{
		"_id": "s1", "shopName": "Test Shop", "shopAddress": "12 Galle Road", "deliveryCharge": 550,
	}),
	source.New(source.CollectionUsers, map[string]any{
		"_id": "u1", "name": "Nimal", "email": "nimal@example.com",
	}),
}

func newRetriever(t *testing.T, graph fusion.GraphSearcher) *fusion.Retriever {
	t.Helper()
	store := vectordb.NewMemoryChromemStore("pipeline_test")
	mgr := semantic.NewManager(store, embedding.NewHashEmbedder(128), chunking.NewWindowChunker(300, 30),
		semantic.NewManifestFile(""), semantic.Options{})
	_, err := mgr.Build(context.Background(), fixtures, time.Time{})
	require.NoError(t, err)

	kw := keyword.NewIndex()
	kw.Build(projector.ProjectAll(fixtures))
	return fusion.NewRetriever(mgr, kw, graph, fusion.Options{SourceTimeout: time.Second})
}

func newPipeline(t *testing.T, graph fusion.GraphSearcher, cm *fakeChatModel, opts Options) *AnswerPipeline {
	t.Helper()
	p, err := NewAnswerPipeline(newRetriever(t, graph), cm, memory.NewBuffer(50), opts)
	require.NoError(t, err)
	return p
}

var tagPattern = regexp.MustCompile(`^\[collection: ([a-z]+)\]\n`)

func TestAnswer_ProductPrice(t *testing.T) {
	cm := &fakeChatModel{reply: "Cheese Koththu: 1,750 LKR (discounted to 1,100 LKR)"}
	p := newPipeline(t, nil, cm, Options{})

	res, err := p.Answer(context.Background(), "What is the price of Cheese Koththu?")
	require.NoError(t, err)
	assert.Equal(t, "What is the price of Cheese Koththu?", res.Question)
	assert.Equal(t, cm.reply, res.Answer)
	assert.Equal(t, graphdb.IntentProduct, res.Intent)

	found := false
	for _, block := range res.Evidence.All() {
		if strings.Contains(block, "1750") && strings.Contains(block, "1100") && strings.Contains(block, "LKR") {
			found = true
		}
	}
	assert.True(t, found, "expected a block with both price figures")

	prompt := cm.lastPrompt()
	assert.Contains(t, prompt, "Regular Price: 1750 LKR")
	assert.Contains(t, prompt, "What is the price of Cheese Koththu?")
	assert.Contains(t, prompt, "I couldn't verify that information. Please call 077-6694351 for assistance.")

	turns := p.Memory().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, memory.RoleUser, turns[0].Role)
	assert.Equal(t, memory.RoleAssistant, turns[1].Role)
}

func TestGenerateNode_RecordsAnswer(t *testing.T) {
	cm := &fakeChatModel{reply: "Test Shop delivers for 550 LKR."}
	p := newPipeline(t, nil, cm, Options{})

	st, err := p.generateNode(context.Background(), &answerState{
		Req:   &AnswerRequest{Question: "delivery charge?"},
		Start: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, st.Err)
	assert.Equal(t, cm.reply, st.Answer)

	turns := p.Memory().Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, memory.RoleAssistant, turns[0].Role)
}

func TestAnswer_EvidenceTags(t *testing.T) {
	known := map[string]bool{
		source.CollectionInventories: true, source.CollectionShops: true,
		source.CollectionInvoiceItems: true, source.CollectionUsers: true,
		fusion.CollectionGraph: true,
	}
	runner := &cannedRunner{rows: []map[string]any{{"name": "Cheese Koththu", "price": 1750}}}
	p := newPipeline(t, graphdb.NewRouter(runner), &fakeChatModel{reply: "ok"}, Options{})

	res, err := p.Answer(context.Background(), "cheese koththu and fried rice")
	require.NoError(t, err)
	require.NotEmpty(t, res.Evidence.All())
	for _, block := range res.Evidence.All() {
		m := tagPattern.FindStringSubmatch(block)
		require.Len(t, m, 2, block)
		assert.True(t, known[m[1]], m[1])
	}
}

func TestAnswer_ShopRouting(t *testing.T) {
	runner := &cannedRunner{rows: []map[string]any{{
		"name": "Test Shop", "address": "12 Galle Road", "products": []any{"Test Product"},
	}}}
	p := newPipeline(t, graphdb.NewRouter(runner), &fakeChatModel{reply: "Test Shop sells Test Product."}, Options{})

	res, err := p.Answer(context.Background(), "Where can I find Test Product near Test Shop?")
	require.NoError(t, err)
	// "shop" 出现在问题里，走 shop_search
	assert.Equal(t, graphdb.IntentShop, res.Intent)
	require.Len(t, res.Evidence.Graph, 1)
	assert.Contains(t, res.Evidence.Graph[0], "Products: Test Product")
	assert.Equal(t, 1, runner.calls)
}

func TestAnswer_GraphUnreachableDegrades(t *testing.T) {
	runner := &cannedRunner{err: errors.New("connection refused")}
	p := newPipeline(t, graphdb.NewRouter(runner), &fakeChatModel{reply: "Cheese Koththu is 1,750 LKR."}, Options{})

	res, err := p.Answer(context.Background(), "What is the price of Cheese Koththu?")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Answer)
	assert.Empty(t, res.Evidence.Graph)
	assert.NotEmpty(t, res.Evidence.Semantic)
	assert.NotEmpty(t, res.Evidence.Keyword)
}

func TestAnswer_GenerationFailures(t *testing.T) {
	tests := []struct {
		name string
		cm   *fakeChatModel
		opts Options
	}{
		{"model error", &fakeChatModel{err: errors.New("quota exceeded")}, Options{}},
		{"empty reply", &fakeChatModel{reply: "   "}, Options{}},
		{"timeout", &fakeChatModel{reply: "late", delay: time.Second}, Options{GenerateTimeout: 20 * time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, nil, tt.cm, tt.opts)
			res, err := p.Answer(context.Background(), "What is the price of Cheese Koththu?")
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrGenerationFailure), err.Error())
			require.NotNil(t, res)
			assert.Empty(t, res.Answer)
			// 失败时只记录了问题
			assert.Equal(t, 1, p.Memory().Len())
		})
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	cm := &fakeChatModel{reply: "x"}
	p := newPipeline(t, nil, cm, Options{})
	_, err := p.Answer(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, cm.lastPrompt())
}

func TestGenerateOnly(t *testing.T) {
	cm := &fakeChatModel{reply: "Sample answer"}
	p := newPipeline(t, nil, cm, Options{ContactPhone: "011-1234567"})

	out, err := p.GenerateOnly(context.Background(), "Test Sinhala data", "What is this?")
	require.NoError(t, err)
	assert.Equal(t, "Sample answer", out)
	prompt := cm.lastPrompt()
	assert.Contains(t, prompt, "Test Sinhala data")
	assert.Contains(t, prompt, "Please call 011-1234567 for assistance.")
	assert.Equal(t, 0, p.Memory().Len())
}

func TestContactFallback(t *testing.T) {
	assert.Equal(t, "I couldn't verify that information. Please call 077-6694351 for assistance.", ContactFallback(""))
}

func TestNewAnswerPipeline_RequiresDeps(t *testing.T) {
	_, err := NewAnswerPipeline(nil, &fakeChatModel{}, nil, Options{})
	assert.Error(t, err)
}
