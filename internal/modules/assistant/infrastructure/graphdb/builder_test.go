package graphdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource map[string][]source.Record

func (s staticSource) FetchAll(ctx context.Context, collection string) ([]source.Record, error) {
	return s[collection], nil
}

func (s staticSource) FetchSince(ctx context.Context, collection string, since time.Time) ([]source.Record, error) {
	return s[collection], nil
}

func seedSource() staticSource {
	return staticSource{
		source.CollectionInventories: {
			source.New(source.CollectionInventories, map[string]any{"_id": "p1", "productName": "Test Product", "price": 1200, "productPrice": 1000}),
			source.New(source.CollectionInventories, map[string]any{"_id": "p2", "productName": "Cheese Koththu", "price": 1750}),
		},
		source.CollectionShops: {
			source.New(source.CollectionShops, map[string]any{"_id": "s1", "shopName": "Test Shop", "ownerName": "Nimal"}),
		},
		source.CollectionUsers: {
			source.New(source.CollectionUsers, map[string]any{"_id": "u1", "name": "Nimal"}),
		},
		source.CollectionInvoiceItems: {
			source.New(source.CollectionInvoiceItems, map[string]any{"productName": "Test Product", "shopName": "Test Shop", "invoiceId": "INV0001", "userId": "u1", "price": 1000, "quantity": 1, "amount": 1000}),
			source.New(source.CollectionInvoiceItems, map[string]any{"productName": "Cheese Koththu", "shopName": "Test Shop", "invoiceId": "INV0001", "userId": "u1", "price": 1750, "quantity": 2, "amount": 3500}),
			source.New(source.CollectionInvoiceItems, map[string]any{"productName": "Test Product", "shopName": "Test Shop", "invoiceId": "INV0002", "amount": 1000}),
		},
	}
}

func TestBuilder_Rebuild(t *testing.T) {
	runner := &seededRunner{}
	counts, err := NewBuilder(runner).Rebuild(context.Background(), seedSource())
	require.NoError(t, err)

	assert.Equal(t, BuildCounts{
		Products: 2, Shops: 1, Users: 1, Invoices: 2,
		Sells: 2, Purchased: 2, Related: 1,
	}, counts)

	var cyphers []string
	for _, c := range runner.calls {
		cyphers = append(cyphers, c.cypher)
	}
	require.GreaterOrEqual(t, len(cyphers), 3)
	assert.Equal(t, pingCypher, cyphers[0])
	assert.Equal(t, clearCypher, cyphers[1])
	assert.Equal(t, ownsCypher, cyphers[len(cyphers)-1])

	for _, c := range runner.calls {
		if c.cypher != relatedCypher {
			continue
		}
		rows := c.params["rows"].([]map[string]any)
		require.Len(t, rows, 1)
		assert.Equal(t, "Cheese Koththu", rows[0]["a"])
		assert.Equal(t, "Test Product", rows[0]["b"])
		assert.Equal(t, int64(1), rows[0]["weight"])
	}
}

func TestBuilder_Batches(t *testing.T) {
	runner := &seededRunner{}
	b := NewBuilder(runner)
	b.batchSize = 1

	_, err := b.Rebuild(context.Background(), seedSource())
	require.NoError(t, err)

	n := 0
	for _, c := range runner.calls {
		if c.cypher == createProductsCypher {
			n++
			assert.Len(t, c.params["rows"], 1)
		}
	}
	assert.Equal(t, 2, n)
}

func TestBuilder_Unreachable(t *testing.T) {
	runner := &seededRunner{err: errUnreachable}
	_, err := NewBuilder(runner).Rebuild(context.Background(), seedSource())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConnectivity))
	assert.Len(t, runner.calls, 1, "nothing is cleared when the ping fails")
}
