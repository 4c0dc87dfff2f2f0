package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const DefaultContactPhone = "077-6694351"

const systemPrompt = `You are a knowledgeable assistant for a food business. Provide accurate, friendly responses based strictly on the retrieved data.

The retrieved data is grouped into sections. Each block starts with a [collection: name] tag naming where it came from: inventories (products), invoiceitems (orders and invoices), shops (shop details and charges), users (customer profiles) and graph (relationships between products and shops).

Guidelines:
1. For product queries:
- State current price and any discounts
- Mention measurement units if relevant
- Note availability when known
- Example: "Cheese Koththu: 1,750 LKR (regularly 1,100 LKR), sold as single portions"

2. For order/invoice questions:
- Summarize key details (items, totals, status)
- Example: "Your order #INV0001 includes 3 Cheese Koththu (5,250 LKR) with 100 toffees (1,800 LKR), total 7,050 LKR"

3. For shop information:
- Share relevant policies and contact details
- Example: "We charge 550 LKR for delivery. Call us at {phone} for orders."

4. When uncertain:
- "{fallback}"

Always:
- Use LKR for currency
- Keep responses clear and professional
- Maintain a helpful, welcoming tone
- Include specific numbers when available
- Group related items logically`

const userPrompt = `Retrieved Data:
{data}

User Question:
{question}

Provide the most complete, accurate response possible:`

// ContactFallback 无法确认信息时的固定回复
func ContactFallback(phone string) string {
	if strings.TrimSpace(phone) == "" {
		phone = DefaultContactPhone
	}
	return fmt.Sprintf("I couldn't verify that information. Please call %s for assistance.", phone)
}

func newTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	)
}

// renderPrompt 将证据与问题填入模板
func renderPrompt(ctx context.Context, tpl prompt.ChatTemplate, phone, data, question string) ([]*schema.Message, error) {
	if strings.TrimSpace(phone) == "" {
		phone = DefaultContactPhone
	}
	return tpl.Format(ctx, map[string]any{
		"phone":    phone,
		"fallback": ContactFallback(phone),
		"data":     data,
		"question": question,
	})
}
