package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/retail-insights/backend/internal/datastore"
)

// columnMeanings documents the semantics of the processed sales dataset for
// the SQL generation prompt. Columns absent from the loaded CSV are skipped.
var columnMeanings = map[string]string{
	"order_id":             "unique order identifier",
	"date":                 "order date",
	"status":               "order status (Shipped, Cancelled, ...)",
	"fulfilment":           "fulfilment channel (Amazon, Merchant)",
	"sales_channel":        "sales channel",
	"service_level":        "shipping service level (Standard, Expedited)",
	"style":                "product style",
	"sku":                  "stock keeping unit",
	"category":             "product category",
	"size":                 "product size",
	"asin":                 "marketplace product identifier",
	"courier_status":       "shipping status",
	"quantity":             "quantity ordered",
	"currency":             "order currency (INR)",
	"amount":               "order amount",
	"city":                 "shipping city",
	"state":                "shipping state",
	"postal_code":          "postal code",
	"country":              "country",
	"is_b2b":               "business-to-business flag (0/1)",
	"year":                 "order year",
	"month":                "order month (1-12)",
	"month_name":           "month name",
	"quarter":              "order quarter (1-4)",
	"quarter_name":         "quarter name",
	"order_value_category": "small/medium/large bucket of amount",
	"is_cancelled":         "1 if the order was cancelled",
	"is_shipped":           "1 if the order was shipped",
	"revenue":              "amount for non-cancelled orders",
	"estimated_profit":     "estimated 20% profit on revenue",
	"unit_price":           "price per unit",
}

const queryPatterns = `
Common query patterns:
- Revenue analysis: SELECT SUM(revenue) FROM sales WHERE status != 'Cancelled'
- Top categories: SELECT category, SUM(revenue) AS total FROM sales GROUP BY category ORDER BY total DESC
- Monthly trends: SELECT year, month, SUM(revenue) FROM sales GROUP BY year, month ORDER BY year, month
- Regional performance: SELECT state, COUNT(*) AS orders, SUM(revenue) FROM sales GROUP BY state
- Cancellation rate: SELECT is_cancelled, COUNT(*) FROM sales GROUP BY is_cancelled`

// DescribeSchema renders the live table schema as the textual enumeration the
// SQL generation agent consumes. The text is cache-stable for a loaded
// dataset, so it is built once.
func (c *Client) DescribeSchema(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schemaText != "" {
		return c.schemaText, nil
	}

	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", c.table))
	if err != nil {
		return "", fmt.Errorf("%w: %v", datastore.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Database: %q table\nColumns:\n", c.table))

	count := 0
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal interface{}
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return "", fmt.Errorf("failed to scan schema row: %w", err)
		}
		if meaning, ok := columnMeanings[name]; ok {
			builder.WriteString(fmt.Sprintf("- %s: %s (%s)\n", name, colType, meaning))
		} else {
			builder.WriteString(fmt.Sprintf("- %s: %s\n", name, colType))
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", datastore.ErrStoreUnavailable, err)
	}
	if count == 0 {
		return "", fmt.Errorf("table %q has no columns; dataset not loaded", c.table)
	}

	builder.WriteString(queryPatterns)

	c.schemaText = builder.String()
	return c.schemaText, nil
}
