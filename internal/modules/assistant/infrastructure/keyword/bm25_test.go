package keyword

import (
	"math"
	"sync"
	"testing"

	"ShopSage/internal/modules/assistant/domain/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(content, key string) document.Projected {
	return document.Projected{Content: content, Metadata: map[string]any{document.MetaRecordKey: key}}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"price", "cheese", "koththu"}, Tokenize("What is the price of Cheese Koththu?"))
	assert.Equal(t, []string{"inv0001", "1", "750", "lkr"}, Tokenize("INV0001: 1,750 LKR"))
	assert.Nil(t, Tokenize("  ?? "))
}

func TestIndex_Query(t *testing.T) {
	ix := NewIndex()
	ix.Build([]document.Projected{
		doc("Product: Cheese Koththu\nRegular Price: 1750 LKR", "p1"),
		doc("Product: Chicken Rice\nRegular Price: 900 LKR", "p2"),
		doc("Shop Name: Test Shop\nAddress: Galle Road", "s1"),
	})
	require.Equal(t, 3, ix.Len())

	hits := ix.Query("cheese koththu price", 10)
	require.NotEmpty(t, hits)
	assert.Equal(t, "p1", hits[0].Doc.RecordKey())
	for _, h := range hits {
		assert.Greater(t, h.Score, 0.0)
		assert.NotEqual(t, "s1", h.Doc.RecordKey(), "zero-score documents are dropped")
	}

	assert.Empty(t, ix.Query("pizza", 10))
	assert.Empty(t, ix.Query("the of", 10))
}

func TestIndex_TiesKeepInsertionOrder(t *testing.T) {
	ix := NewIndex()
	ix.Build([]document.Projected{
		doc("roti", "a"),
		doc("roti", "b"),
		doc("roti", "c"),
	})
	hits := ix.Query("roti", 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Doc.RecordKey())
	assert.Equal(t, "b", hits[1].Doc.RecordKey())
	assert.Equal(t, hits[0].Score, hits[1].Score)
}

func TestIndex_ScoreFormula(t *testing.T) {
	ix := NewIndex()
	ix.Build([]document.Projected{doc("kottu kottu", "a"), doc("rice", "b")})

	hits := ix.Query("kottu", 0)
	require.Len(t, hits, 1)

	// N=2, n=1, avgdl=1.5, dl=2, f=2
	w := math.Log(1 + (2-1+0.5)/(1+0.5))
	norm := 1 - DefaultB + DefaultB*2/1.5
	want := w * 2 * (DefaultK1 + 1) / (2 + DefaultK1*norm)
	assert.InDelta(t, want, hits[0].Score, 1e-9)
}

func TestIndex_Deterministic(t *testing.T) {
	docs := []document.Projected{
		doc("Item: Kottu\nShop: Test Shop", "i1"),
		doc("Item: Kottu\nShop: Other Shop", "i2"),
		doc("Shop Name: Test Shop", "s1"),
	}
	a, b := NewIndex(), NewIndex()
	a.Build(docs)
	b.Build(docs)
	assert.Equal(t, a.Query("kottu test shop", 5), b.Query("kottu test shop", 5))
}

func TestIndex_ConcurrentQueryDuringBuild(t *testing.T) {
	ix := NewIndex()
	ix.Build([]document.Projected{doc("roti", "a")})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = ix.Query("roti", 1)
			}
		}()
	}
	ix.Build([]document.Projected{doc("roti", "b"), doc("rice", "c")})
	wg.Wait()

	hits := ix.Query("roti", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Doc.RecordKey())
}
