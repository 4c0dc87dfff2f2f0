package source

import (
	"fmt"
	"strings"
	"time"
)

// 运营库集合名，字段名属于外部约定
const (
	CollectionInventories  = "inventories"
	CollectionShops        = "shops"
	CollectionInvoiceItems = "invoiceitems"
	CollectionUsers        = "users"
)

// Collections 索引时的固定顺序
var Collections = []string{
	CollectionInventories,
	CollectionShops,
	CollectionInvoiceItems,
	CollectionUsers,
}

const FieldID = "_id"

// Fields 每个集合读取的字段（敏感字段不在其中，读取时直接投影掉）
var Fields = map[string][]string{
	CollectionInventories: {
		"productName", "productType", "brandName", "price", "productPrice",
		"productDiscount", "discountType", "inventoryCategoryId", "quantity",
	},
	CollectionInvoiceItems: {
		"productName", "shopName", "invoiceId", "userId", "price", "quantity",
		"amount", "productPrice", "productDiscount", "discountType", "createdAt",
	},
	CollectionUsers: {
		"name", "email", "phoneNumber", "userType", "role", "premiumStatus",
		"premiumUserType", "verifiedStatus", "medium", "isMaintainInventory",
	},
	CollectionShops: {
		"shopName", "ownerName", "shopAddress", "phoneNumber", "serviceCharge",
		"serviceChargeType", "deliveryCharge", "shortNote",
	},
}

// Record 运营库中的一条原始记录
type Record struct {
	Collection string
	Fields     map[string]any
}

func New(collection string, fields map[string]any) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{Collection: collection, Fields: fields}
}

// Key 记录主键的字符串形式
func (r Record) Key() string {
	v, ok := r.Fields[FieldID]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

// Value 取字段值；nil 或空白字符串视为缺失
func (r Record) Value(field string) (any, bool) {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return nil, false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

// String 取字段的字符串值
func (r Record) String(field string) (string, bool) {
	v, ok := r.Value(field)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

// Float 取数值字段，支持整型/浮点/数字字符串
func (r Record) Float(field string) (float64, bool) {
	v, ok := r.Value(field)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Bool 取布尔字段
func (r Record) Bool(field string) (bool, bool) {
	v, ok := r.Value(field)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	case int, int32, int64, float64:
		f, _ := ToFloat(t)
		return f != 0, true
	}
	return false, false
}

// Time 取时间字段
func (r Record) Time(field string) (time.Time, bool) {
	v, ok := r.Value(field)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}
