package graphdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ShopSage/internal/modules/assistant/domain/apperr"
	"ShopSage/internal/modules/assistant/domain/repository"
	"ShopSage/internal/modules/assistant/domain/source"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

const defaultBatchSize = 500

// BuildCounts 一次重建写入的节点与关系数量
type BuildCounts struct {
	Products  int `json:"products"`
	Shops     int `json:"shops"`
	Users     int `json:"users"`
	Invoices  int `json:"invoices"`
	Sells     int `json:"sells"`
	Purchased int `json:"purchased"`
	Related   int `json:"related"`
}

// Builder 从运营库离线重建关系图
type Builder struct {
	runner    Runner
	batchSize int
}

func NewBuilder(runner Runner) *Builder {
	return &Builder{runner: runner, batchSize: defaultBatchSize}
}

// Rebuild 清空图后重新创建所有节点和关系
func (b *Builder) Rebuild(ctx context.Context, src repository.RecordSource) (BuildCounts, error) {
	start := time.Now()
	if _, err := b.runner.Run(ctx, pingCypher, nil); err != nil {
		return BuildCounts{}, fmt.Errorf("%w: %v", apperr.ErrConnectivity, err)
	}

	data := map[string][]source.Record{}
	for _, c := range source.Collections {
		recs, err := src.FetchAll(ctx, c)
		if err != nil {
			return BuildCounts{}, fmt.Errorf("fetch %s: %w", c, err)
		}
		data[c] = recs
	}

	if _, err := b.runner.Run(ctx, clearCypher, nil); err != nil {
		return BuildCounts{}, fmt.Errorf("clear graph: %w", err)
	}

	var counts BuildCounts
	products := productRows(data[source.CollectionInventories])
	shops := shopRows(data[source.CollectionShops])
	users := userRows(data[source.CollectionUsers])
	invoices, sells, purchased, related := invoiceRows(data[source.CollectionInvoiceItems])

	steps := []struct {
		name   string
		cypher string
		rows   []map[string]any
		count  *int
	}{
		{"products", createProductsCypher, products, &counts.Products},
		{"shops", createShopsCypher, shops, &counts.Shops},
		{"users", createUsersCypher, users, &counts.Users},
		{"invoices", createInvoicesCypher, invoices, &counts.Invoices},
		{"sells", sellsCypher, sells, &counts.Sells},
		{"purchased", purchasedCypher, purchased, &counts.Purchased},
		{"related", relatedCypher, related, &counts.Related},
	}
	for _, st := range steps {
		if err := b.unwind(ctx, st.cypher, st.rows); err != nil {
			return counts, fmt.Errorf("create %s: %w", st.name, err)
		}
		*st.count = len(st.rows)
	}
	if _, err := b.runner.Run(ctx, ownsCypher, nil); err != nil {
		return counts, fmt.Errorf("create owns: %w", err)
	}

	zlog.Info("graph rebuilt",
		zap.Int("products", counts.Products),
		zap.Int("shops", counts.Shops),
		zap.Int("users", counts.Users),
		zap.Int("invoices", counts.Invoices),
		zap.Int("sells", counts.Sells),
		zap.Int("purchased", counts.Purchased),
		zap.Int("related", counts.Related),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return counts, nil
}

func (b *Builder) unwind(ctx context.Context, cypher string, rows []map[string]any) error {
	for i := 0; i < len(rows); i += b.batchSize {
		end := min(i+b.batchSize, len(rows))
		if _, err := b.runner.Run(ctx, cypher, map[string]any{"rows": rows[i:end]}); err != nil {
			return err
		}
	}
	return nil
}

func strOr(r source.Record, field, def string) string {
	if s, ok := r.String(field); ok {
		return s
	}
	return def
}

func num(r source.Record, field string) float64 {
	f, _ := r.Float(field)
	return f
}

func productRows(recs []source.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, map[string]any{
			"key":            r.Key(),
			"name":           strOr(r, "productName", "Unknown"),
			"type":           strOr(r, "productType", ""),
			"brand":          strOr(r, "brandName", ""),
			"price":          num(r, "price"),
			"discount_price": num(r, "productPrice"),
			"discount_type":  strOr(r, "discountType", "NONE"),
			"quantity":       int64(num(r, "quantity")),
			"category":       strOr(r, "inventoryCategoryId", "Uncategorized"),
		})
	}
	return rows
}

func shopRows(recs []source.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, map[string]any{
			"key":             r.Key(),
			"name":            strOr(r, "shopName", "Unknown Shop"),
			"owner":           strOr(r, "ownerName", ""),
			"address":         strOr(r, "shopAddress", ""),
			"phone":           strOr(r, "phoneNumber", ""),
			"service_charge":  num(r, "serviceCharge"),
			"delivery_charge": num(r, "deliveryCharge"),
			"note":            strOr(r, "shortNote", ""),
		})
	}
	return rows
}

func userRows(recs []source.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		premium, _ := r.Bool("premiumStatus")
		verified, _ := r.Bool("verifiedStatus")
		rows = append(rows, map[string]any{
			"key":            r.Key(),
			"name":           strOr(r, "name", ""),
			"email":          strOr(r, "email", ""),
			"phone":          strOr(r, "phoneNumber", ""),
			"user_type":      strOr(r, "userType", "REGULAR"),
			"premium_status": premium,
			"verified":       verified,
		})
	}
	return rows
}

// invoiceRows 从发票明细推导 Invoice 节点以及 SELLS / PURCHASED / RELATED_TO 关系
func invoiceRows(items []source.Record) (invoices, sells, purchased, related []map[string]any) {
	type invoiceAgg struct {
		total    float64
		date     string
		products []string
	}
	aggs := map[string]*invoiceAgg{}
	var order []string
	seenSell := map[[2]string]bool{}

	for _, it := range items {
		product, hasProduct := it.String("productName")
		shop, hasShop := it.String("shopName")
		invoice, hasInvoice := it.String("invoiceId")
		date := ""
		if ts, ok := it.Time("createdAt"); ok {
			date = ts.UTC().Format(time.RFC3339)
		}

		if hasProduct && hasShop && !seenSell[[2]string{shop, product}] {
			seenSell[[2]string{shop, product}] = true
			sells = append(sells, map[string]any{"shop": shop, "product": product})
		}
		if user, ok := it.String("userId"); ok && hasProduct {
			purchased = append(purchased, map[string]any{
				"user":     user,
				"product":  product,
				"invoice":  invoice,
				"quantity": int64(num(it, "quantity")),
				"price":    num(it, "price"),
				"date":     date,
			})
		}
		if !hasInvoice {
			continue
		}
		agg, ok := aggs[invoice]
		if !ok {
			agg = &invoiceAgg{date: date}
			aggs[invoice] = agg
			order = append(order, invoice)
		}
		agg.total += num(it, "amount")
		if hasProduct {
			agg.products = append(agg.products, product)
		}
	}

	pairs := map[[2]string]int{}
	for _, id := range order {
		agg := aggs[id]
		invoices = append(invoices, map[string]any{"invoice_id": id, "total": agg.total, "date": agg.date})

		uniq := map[string]bool{}
		var ps []string
		for _, p := range agg.products {
			if !uniq[p] {
				uniq[p] = true
				ps = append(ps, p)
			}
		}
		sort.Strings(ps)
		for i := 0; i < len(ps); i++ {
			for j := i + 1; j < len(ps); j++ {
				pairs[[2]string{ps[i], ps[j]}]++
			}
		}
	}
	keys := make([][2]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, k := range keys {
		related = append(related, map[string]any{"a": k[0], "b": k[1], "weight": int64(pairs[k])})
	}
	return invoices, sells, purchased, related
}
