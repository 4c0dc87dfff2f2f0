package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/repository"
	"ShopSage/internal/modules/assistant/domain/source"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/internal/modules/assistant/infrastructure/keyword"
	"ShopSage/internal/modules/assistant/infrastructure/memory"
	"ShopSage/internal/modules/assistant/infrastructure/mq"
	"ShopSage/internal/modules/assistant/infrastructure/pipeline"
	"ShopSage/internal/modules/assistant/infrastructure/semantic"
	"ShopSage/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	records []source.Record
	err     error
}

func (s *memSource) FetchAll(ctx context.Context, collection string) ([]source.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []source.Record
	for _, r := range s.records {
		if r.Collection == collection {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memSource) FetchSince(ctx context.Context, collection string, since time.Time) ([]source.Record, error) {
	return s.FetchAll(ctx, collection)
}

type fakeSemantic struct {
	loadErr    error
	refreshErr error
	built      int
	refreshed  []time.Time
	manifest   *semantic.Manifest
}

func (f *fakeSemantic) Load(ctx context.Context, src repository.RecordSource) (semantic.BuildStats, error) {
	return semantic.BuildStats{Reused: true, Chunks: 3}, f.loadErr
}

func (f *fakeSemantic) Build(ctx context.Context, records []source.Record, fetchedAt time.Time) (semantic.BuildStats, error) {
	f.built++
	return semantic.BuildStats{Documents: len(records), Chunks: len(records)}, nil
}

func (f *fakeSemantic) Refresh(ctx context.Context, src repository.RecordSource, since time.Time) (semantic.RefreshStats, error) {
	f.refreshed = append(f.refreshed, since)
	return semantic.RefreshStats{Since: since, Records: 1, Chunks: 1}, f.refreshErr
}

func (f *fakeSemantic) Manifest() (semantic.Manifest, bool) {
	if f.manifest == nil {
		return semantic.Manifest{}, false
	}
	return *f.manifest, true
}

var records = []source.Record{
	source.New(source.CollectionInventories, map[string]any{"_id": "p1", "productName": "Cheese Koththu", "price": 1750}),
	source.New(source.CollectionShops, map[string]any{"_id": "s1", "shopName": "Test Shop"}),
}

func codeOf(t *testing.T, err error) int {
	t.Helper()
	ce, ok := xerr.As(err)
	require.True(t, ok, "expected CodeError, got %v", err)
	return ce.Code
}

func TestIndexService_Load(t *testing.T) {
	kw := keyword.NewIndex()
	svc := NewIndexService(&memSource{records: records}, &fakeSemantic{}, kw)
	require.NoError(t, svc.Load(context.Background()))
	assert.Equal(t, 2, kw.Len())
	hits := kw.Query("cheese koththu", 4)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Doc.Content, "Cheese Koththu")
}

func TestIndexService_LoadFailures(t *testing.T) {
	semErr := fmt.Errorf("%w: store down", apperr.ErrIndexUnavailable)
	err := NewIndexService(&memSource{}, &fakeSemantic{loadErr: semErr}, keyword.NewIndex()).Load(context.Background())
	assert.ErrorIs(t, err, apperr.ErrIndexUnavailable)

	err = NewIndexService(&memSource{err: errors.New("mongo down")}, nil, keyword.NewIndex()).Load(context.Background())
	assert.ErrorIs(t, err, apperr.ErrIndexUnavailable)
}

func TestIndexService_Refresh(t *testing.T) {
	sem := &fakeSemantic{}
	svc := NewIndexService(&memSource{records: records}, sem, keyword.NewIndex())

	res, err := svc.Refresh(context.Background(), request.RefreshIndexRequest{Since: "2024-05-01T12:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.KeywordDocs)
	require.Len(t, sem.refreshed, 1)
	assert.True(t, sem.refreshed[0].Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	_, err = svc.Refresh(context.Background(), request.RefreshIndexRequest{})
	require.NoError(t, err)
	assert.True(t, sem.refreshed[1].IsZero())

	_, err = svc.Refresh(context.Background(), request.RefreshIndexRequest{Since: "yesterday"})
	assert.Equal(t, xerr.BadRequest, codeOf(t, err))
}

func TestIndexService_RebuildAndStatus(t *testing.T) {
	built := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	sem := &fakeSemantic{manifest: &semantic.Manifest{NextSeq: 9, Chunks: 9, BuiltAt: built, RefreshedAt: built}}
	kw := keyword.NewIndex()
	svc := NewIndexService(&memSource{records: records}, sem, kw)

	res, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sem.built)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 2, res.KeywordDocs)

	st := svc.Status()
	assert.True(t, st.SemanticEnabled)
	assert.Equal(t, 9, st.Chunks)
	require.NotNil(t, st.BuiltAt)
	assert.True(t, built.Equal(*st.BuiltAt))
	assert.Equal(t, 2, st.KeywordDocs)
}

type fakeAnswerer struct {
	res *pipeline.AnswerResult
	err error
	mem *memory.Buffer
}

func (f *fakeAnswerer) Answer(ctx context.Context, q string) (*pipeline.AnswerResult, error) {
	return f.res, f.err
}

func (f *fakeAnswerer) GenerateOnly(ctx context.Context, data, q string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "generated from " + data, nil
}

func (f *fakeAnswerer) Memory() *memory.Buffer { return f.mem }

func TestAskService_Ask(t *testing.T) {
	tests := []struct {
		name     string
		answerer *fakeAnswerer
		question string
		want     string
		code     int
	}{
		{"answer", &fakeAnswerer{res: &pipeline.AnswerResult{Answer: "1,750 LKR"}}, "price?", "1,750 LKR", 0},
		{"blank answer", &fakeAnswerer{res: &pipeline.AnswerResult{}}, "price?", noResponseAnswer, 0},
		{"empty question", &fakeAnswerer{}, "  ", "", xerr.BadRequest},
		{"generation failure", &fakeAnswerer{err: fmt.Errorf("%w: quota", apperr.ErrGenerationFailure)}, "price?", "", xerr.InternalServerError},
		{"deadline", &fakeAnswerer{err: fmt.Errorf("%w: %w", apperr.ErrGenerationFailure, context.DeadlineExceeded)}, "price?", "", xerr.GatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewAskService(tt.answerer).Ask(context.Background(), request.AskRequest{Question: tt.question})
			if tt.code != 0 {
				assert.Equal(t, tt.code, codeOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Answer)
			assert.Equal(t, tt.question, res.Question)
		})
	}
}

func TestAskService_TestAndMemory(t *testing.T) {
	mem := memory.NewBuffer(10)
	mem.AddUser("hi")
	svc := NewAskService(&fakeAnswerer{mem: mem})

	res, err := svc.Test(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "generated from Test Sinhala data", res.Response)
	assert.Len(t, svc.Memory().Turns, 1)

	assert.NotNil(t, NewAskService(&fakeAnswerer{}).Memory().Turns)
}

type fakeBuilder struct {
	err error
}

func (f *fakeBuilder) Rebuild(ctx context.Context, src repository.RecordSource) (graphdb.BuildCounts, error) {
	return graphdb.BuildCounts{Products: 2, Shops: 1}, f.err
}

type fakeSearcher struct{}

func (fakeSearcher) Search(ctx context.Context, q string) ([]string, graphdb.Intent) {
	return nil, graphdb.Classify(q)
}

func TestGraphService(t *testing.T) {
	ctx := context.Background()

	_, err := NewGraphService(&memSource{}, nil, nil).Rebuild(ctx)
	assert.Equal(t, xerr.ServiceUnavailable, codeOf(t, err))

	res, err := NewGraphService(&memSource{}, &fakeBuilder{}, nil).Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Products)

	_, err = NewGraphService(&memSource{}, &fakeBuilder{err: fmt.Errorf("%w: refused", apperr.ErrConnectivity)}, nil).Rebuild(ctx)
	assert.Equal(t, xerr.ServiceUnavailable, codeOf(t, err))

	sr, err := NewGraphService(&memSource{}, nil, fakeSearcher{}).Search(ctx, "which store")
	require.NoError(t, err)
	assert.Equal(t, graphdb.IntentShop, sr.Intent)
	assert.NotNil(t, sr.Blocks)
}

type fakePublisher struct {
	msgs []mq.Message
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, msg mq.Message) (mq.PublishResult, error) {
	if f.err != nil {
		return mq.PublishResult{}, f.err
	}
	f.msgs = append(f.msgs, msg)
	return mq.PublishResult{Partition: 0, Offset: int64(len(f.msgs))}, nil
}

func (f *fakePublisher) Close() error { return nil }

func TestChangeService_Notify(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewChangeService(pub, "changes")

	res, err := svc.Notify(ctx, request.RecordChangedRequest{Collection: "inventories", RecordKey: "p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Offset)
	ev, err := mq.DecodeChangeEvent(pub.msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "p1", ev.RecordKey)

	_, err = svc.Notify(ctx, request.RecordChangedRequest{Collection: "payments"})
	assert.Equal(t, xerr.BadRequest, codeOf(t, err))

	_, err = NewChangeService(nil, "changes").Notify(ctx, request.RecordChangedRequest{Collection: "shops"})
	assert.Equal(t, xerr.ServiceUnavailable, codeOf(t, err))
}
