package graphdb

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"ShopSage/internal/modules/assistant/domain/source"
	"ShopSage/internal/modules/assistant/infrastructure/projector"
	"ShopSage/pkg/util"
	"ShopSage/pkg/zlog"

	"go.uber.org/zap"
)

type Intent string

const (
	IntentProduct Intent = "product_search"
	IntentShop    Intent = "shop_search"
)

var triggerWords = []string{"shop", "store", "location"}

// Classify 小写后做子串匹配，出现 shop/store/location 即为 shop_search
func Classify(question string) Intent {
	q := strings.ToLower(question)
	for _, w := range triggerWords {
		if strings.Contains(q, w) {
			return IntentShop
		}
	}
	return IntentProduct
}

// NormalizeQuery 小写、去标点、折叠空白
func NormalizeQuery(question string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, question)
	return util.NormalizeSpace(mapped)
}

// Router 按意图选择图查询模板
type Router struct {
	runner Runner
}

func NewRouter(runner Runner) *Router {
	return &Router{runner: runner}
}

// Search 查询失败只记日志，返回空结果
func (r *Router) Search(ctx context.Context, question string) ([]string, Intent) {
	intent := Classify(question)
	if r == nil || r.runner == nil {
		return nil, intent
	}
	query := NormalizeQuery(question)
	if query == "" {
		return nil, intent
	}

	cypher := productSearchCypher
	if intent == IntentShop {
		cypher = shopSearchCypher
	}

	start := time.Now()
	rows, err := r.runner.Run(ctx, cypher, map[string]any{"query": query})
	if err != nil {
		zlog.Warn("graph search failed",
			zap.String("intent", string(intent)),
			zap.String("query", query),
			zap.Error(err))
		return nil, intent
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		var block string
		if intent == IntentShop {
			block = formatShop(row)
		} else {
			block = formatProduct(row)
		}
		if block != "" {
			out = append(out, block)
		}
	}
	zlog.Debug("graph search done",
		zap.String("intent", string(intent)),
		zap.Int("results", len(out)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return out, intent
}

func formatProduct(row map[string]any) string {
	name := str(row["name"])
	if name == "" {
		return ""
	}
	lines := []string{"Product: " + name}
	if v, ok := money(row["price"]); ok {
		lines = append(lines, "Regular Price: "+v)
	}
	if v, ok := money(row["discount_price"]); ok {
		lines = append(lines, "Discount Price: "+v)
	}
	if c := str(row["category"]); c != "" {
		lines = append(lines, "Category: "+c)
	}
	if shops := list(row["shops"]); len(shops) > 0 {
		lines = append(lines, "Sold At: "+strings.Join(shops, ", "))
	}
	if rel := list(row["related"]); len(rel) > 0 {
		lines = append(lines, "Related Products: "+strings.Join(rel, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatShop(row map[string]any) string {
	name := str(row["name"])
	if name == "" {
		return ""
	}
	lines := []string{"Shop: " + name}
	if a := str(row["address"]); a != "" {
		lines = append(lines, "Address: "+a)
	}
	if p := str(row["phone"]); p != "" {
		lines = append(lines, "Phone: "+p)
	}
	if v, ok := money(row["delivery_charge"]); ok {
		lines = append(lines, "Delivery Charge: "+v)
	}
	if v, ok := source.ToFloat(row["service_charge"]); ok && row["service_charge"] != nil {
		lines = append(lines, "Service Charge: "+projector.FormatNumber(v))
	}
	if products := list(row["products"]); len(products) > 0 {
		lines = append(lines, "Products: "+strings.Join(products, ", "))
	}
	return strings.Join(lines, "\n")
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func money(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	f, ok := source.ToFloat(v)
	if !ok {
		return "", false
	}
	return projector.FormatNumber(f) + " LKR", true
}

func list(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := str(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
