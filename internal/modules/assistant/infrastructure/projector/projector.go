package projector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ShopSage/internal/modules/assistant/domain/document"
	"ShopSage/internal/modules/assistant/domain/source"
)

const currency = "LKR"

// 文档 type 元数据
const (
	TypeProduct     = "product"
	TypeInvoiceItem = "invoice_item"
	TypeUser        = "user_profile"
	TypeShop        = "shop_info"
)

// line 一行 "Label: value"；render 返回 false 表示该行省略
type line struct {
	label  string
	render func(r source.Record) (string, bool)
}

type layout struct {
	docType     string
	nameField   string
	unknownName string
	priceField  string
	lines       []line
}

var layouts = map[string]layout{
	source.CollectionInventories: {
		docType:     TypeProduct,
		nameField:   "productName",
		unknownName: "Unknown",
		priceField:  "price",
		lines: []line{
			{"Product", name("productName", "Unknown")},
			{"Type", text("productType")},
			{"Brand", text("brandName")},
			{"Regular Price", money("price")},
			{"Discount Price", money("productPrice")},
			{"Discount", discount},
			{"Category", text("inventoryCategoryId")},
			{"Quantity", quantity},
		},
	},
	source.CollectionInvoiceItems: {
		docType:     TypeInvoiceItem,
		nameField:   "productName",
		unknownName: "Unknown",
		priceField:  "price",
		lines: []line{
			{"Item", name("productName", "Unknown")},
			{"Shop", text("shopName")},
			{"Invoice", text("invoiceId")},
			{"Sold Price", money("price")},
			{"Quantity Sold", text("quantity")},
			{"Total Amount", money("amount")},
			{"Original Price", money("productPrice")},
			{"Discount", discount},
			{"Date", date("createdAt")},
		},
	},
	source.CollectionUsers: {
		docType:     TypeUser,
		nameField:   "name",
		unknownName: "Unknown User",
		lines: []line{
			{"User Name", name("name", "Unknown User")},
			{"Email", text("email")},
			{"Phone", text("phoneNumber")},
			{"User Type", text("userType")},
			{"Role", text("role")},
			{"Premium Status", text("premiumStatus")},
			{"Premium Type", text("premiumUserType")},
			{"Verification Status", text("verifiedStatus")},
			{"Account Medium", text("medium")},
			{"Manages Inventory", managesInventory},
		},
	},
	source.CollectionShops: {
		docType:     TypeShop,
		nameField:   "shopName",
		unknownName: "Unknown Shop",
		lines: []line{
			{"Shop Name", name("shopName", "Unknown Shop")},
			{"Owner", text("ownerName")},
			{"Address", text("shopAddress")},
			{"Phone", text("phoneNumber")},
			{"Service Charge", serviceCharge},
			{"Delivery Charge", money("deliveryCharge")},
			{"Note", text("shortNote")},
		},
	},
}

// Supported 是否为可投影的集合
func Supported(collection string) bool {
	_, ok := layouts[collection]
	return ok
}

// Project 把一条运营记录转成检索文档。纯函数，同一记录输出字节一致。
// 缺失字段所在行统一省略，带默认值的行（折扣、服务费、是否管理库存）保留默认值。
func Project(rec source.Record) document.Projected {
	lay, ok := layouts[rec.Collection]
	if !ok {
		return document.Projected{
			Content: "",
			Metadata: map[string]any{
				document.MetaCollection: rec.Collection,
				document.MetaName:       "Unknown",
				document.MetaRecordKey:  rec.Key(),
				document.MetaSource:     document.SourceDatabase,
			},
		}
	}

	parts := make([]string, 0, len(lay.lines))
	for _, l := range lay.lines {
		v, ok := l.render(rec)
		if !ok {
			continue
		}
		parts = append(parts, l.label+": "+v)
	}

	nm, ok := rec.String(lay.nameField)
	if !ok {
		nm = lay.unknownName
	}
	meta := map[string]any{
		document.MetaCollection: rec.Collection,
		document.MetaName:       nm,
		document.MetaRecordKey:  rec.Key(),
		document.MetaType:       lay.docType,
		document.MetaSource:     document.SourceDatabase,
	}
	if lay.priceField != "" {
		if p, ok := rec.Float(lay.priceField); ok {
			meta[document.MetaPrice] = p
		}
	}
	return document.Projected{Content: strings.Join(parts, "\n"), Metadata: meta}
}

// ProjectAll 按输入顺序批量投影
func ProjectAll(records []source.Record) []document.Projected {
	out := make([]document.Projected, 0, len(records))
	for _, r := range records {
		if !Supported(r.Collection) {
			continue
		}
		out = append(out, Project(r))
	}
	return out
}

// FormatNumber 去掉多余的小数位：1750 -> "1750"，12.5 -> "12.5"
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatValue(v any) string {
	if f, ok := source.ToFloat(v); ok {
		if _, isStr := v.(string); !isStr {
			return FormatNumber(f)
		}
	}
	switch t := v.(type) {
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func text(field string) func(source.Record) (string, bool) {
	return func(r source.Record) (string, bool) {
		v, ok := r.Value(field)
		if !ok {
			return "", false
		}
		return formatValue(v), true
	}
}

func name(field, unknown string) func(source.Record) (string, bool) {
	return func(r source.Record) (string, bool) {
		if s, ok := r.String(field); ok {
			return s, true
		}
		return unknown, true
	}
}

func money(field string) func(source.Record) (string, bool) {
	return func(r source.Record) (string, bool) {
		v, ok := r.Value(field)
		if !ok {
			return "", false
		}
		if f, ok := source.ToFloat(v); ok {
			return FormatNumber(f) + " " + currency, true
		}
		return formatValue(v) + " " + currency, true
	}
}

func date(field string) func(source.Record) (string, bool) {
	return func(r source.Record) (string, bool) {
		if ts, ok := r.Time(field); ok {
			return ts.UTC().Format("2006-01-02"), true
		}
		return text(field)(r)
	}
}

func isPercentage(r source.Record, field string) bool {
	s, _ := r.String(field)
	return strings.EqualFold(s, "PERCENTAGE")
}

func discount(r source.Record) (string, bool) {
	amount := "0"
	if v, ok := r.Value("productDiscount"); ok {
		amount = formatValue(v)
	}
	if isPercentage(r, "discountType") {
		return amount + "%", true
	}
	return amount + " " + currency, true
}

func quantity(r source.Record) (string, bool) {
	v, ok := r.Value("quantity")
	if !ok {
		return "", false
	}
	q := formatValue(v)
	if unit, ok := r.String("productType"); ok {
		q += " " + unit
	}
	return q, true
}

func managesInventory(r source.Record) (string, bool) {
	if b, ok := r.Bool("isMaintainInventory"); ok && b {
		return "Yes", true
	}
	return "No", true
}

func serviceCharge(r source.Record) (string, bool) {
	amount := "0"
	if v, ok := r.Value("serviceCharge"); ok {
		amount = formatValue(v)
	}
	if isPercentage(r, "serviceChargeType") {
		return amount + "%", true
	}
	unit := currency
	if s, ok := r.String("serviceChargeType"); ok {
		unit = s
	}
	return amount + " " + unit, true
}
