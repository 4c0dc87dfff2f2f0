package graphdb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

type fakeProduct struct {
	name    string
	price   float64
	related []string
}

type fakeShop struct {
	name    string
	address string
	sells   []string
}

// seededRunner 在内存中模拟两个检索模板，并记录收到的语句
type seededRunner struct {
	mu       sync.Mutex
	products []fakeProduct
	shops    []fakeShop
	calls    []call
	err      error
}

type call struct {
	cypher string
	params map[string]any
}

func matches(name, query string) bool {
	n := strings.ToLower(name)
	return n != "" && query != "" && (strings.Contains(n, query) || strings.Contains(query, n))
}

func (r *seededRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{cypher: cypher, params: params})
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, _ := params["query"].(string)
	switch cypher {
	case productSearchCypher:
		var out []map[string]any
		for _, p := range r.products {
			if !matches(p.name, q) {
				continue
			}
			var shops []any
			for _, s := range r.shops {
				for _, sold := range s.sells {
					if sold == p.name {
						shops = append(shops, s.name)
					}
				}
			}
			var rel []any
			for _, x := range p.related {
				rel = append(rel, x)
			}
			out = append(out, map[string]any{
				"name": p.name, "price": p.price, "discount_price": nil,
				"category": nil, "shops": shops, "related": rel,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i]["name"].(string) < out[j]["name"].(string) })
		if len(out) > 5 {
			out = out[:5]
		}
		return out, nil
	case shopSearchCypher:
		var out []map[string]any
		for _, s := range r.shops {
			if !matches(s.name, q) {
				continue
			}
			var products []any
			for _, p := range s.sells {
				products = append(products, p)
			}
			out = append(out, map[string]any{
				"name": s.name, "address": s.address, "phone": nil,
				"delivery_charge": int64(550), "service_charge": nil, "products": products,
			})
		}
		if len(out) > 3 {
			out = out[:3]
		}
		return out, nil
	}
	return []map[string]any{}, nil
}

func (r *seededRunner) Close(ctx context.Context) error { return nil }

var errUnreachable = errors.New("connection refused")
