package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-insights/backend/internal/datastore"
)

const testCSV = `Order ID,Date,Status,Category,State,Quantity,Amount,is_cancelled,revenue,estimated_profit,year,month
405-100,2022-04-30,Shipped,Kurta,MAHARASHTRA,1,376.00,0,376.00,75.20,2022,4
405-101,2022-04-30,Cancelled,Kurta,KARNATAKA,1,0,1,0,0,2022,4
405-102,2022-05-01,Shipped,Western Dress,TELANGANA,2,753.33,0,753.33,150.67,2022,5
`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o644))

	c, err := NewClient(filepath.Join(dir, "test.db"), "sales")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.LoadCSV(context.Background(), csvPath))
	return c
}

func TestLoadCSVNormalizesColumnsAndTypes(t *testing.T) {
	c := newTestClient(t)

	result, err := c.Execute(context.Background(), "SELECT order_id, amount FROM sales ORDER BY order_id")
	require.NoError(t, err)
	require.Equal(t, 3, result.RowCount())
	assert.Equal(t, []string{"order_id", "amount"}, result.Columns)
	assert.Equal(t, "405-100", result.Rows[0][0])
	assert.Equal(t, "376", result.Rows[0][1])
}

func TestLoadCSVIsIdempotent(t *testing.T) {
	c := newTestClient(t)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "again.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o644))
	require.NoError(t, c.LoadCSV(context.Background(), csvPath))

	result, err := c.Execute(context.Background(), "SELECT COUNT(*) FROM sales")
	require.NoError(t, err)
	assert.Equal(t, "3", result.Rows[0][0], "reload must not duplicate rows")
}

func TestExecuteAggregates(t *testing.T) {
	c := newTestClient(t)

	result, err := c.Execute(context.Background(),
		"SELECT category, SUM(revenue) FROM sales GROUP BY category ORDER BY 2 DESC")
	require.NoError(t, err)
	require.Equal(t, 2, result.RowCount())
	assert.Equal(t, "Western Dress", result.Rows[0][0])
}

func TestExecuteEmptyResultIsNotAnError(t *testing.T) {
	c := newTestClient(t)

	result, err := c.Execute(context.Background(), "SELECT * FROM sales WHERE year = 1999")
	require.NoError(t, err)
	assert.Zero(t, result.RowCount())
	assert.NotEmpty(t, result.Columns)
}

func TestExecuteMalformedQuery(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Execute(context.Background(), "SELECT nonexistent_column FROM sales")

	var malformed *datastore.MalformedQueryError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Query, "nonexistent_column")
	assert.False(t, errors.Is(err, datastore.ErrStoreUnavailable))
}

func TestExecuteOnClosedStoreIsUnavailable(t *testing.T) {
	c := newTestClient(t)
	require.NoError(t, c.Close())

	_, err := c.Execute(context.Background(), "SELECT COUNT(*) FROM sales")
	assert.ErrorIs(t, err, datastore.ErrStoreUnavailable)
}

func TestDescribeSchemaListsColumnsAndMeanings(t *testing.T) {
	c := newTestClient(t)

	schema, err := c.DescribeSchema(context.Background())
	require.NoError(t, err)

	assert.Contains(t, schema, "order_id")
	assert.Contains(t, schema, "unique order identifier")
	assert.Contains(t, schema, "Common query patterns")

	// Second call serves the cached text.
	again, err := c.DescribeSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schema, again)
}

func TestSummaryStats(t *testing.T) {
	c := newTestClient(t)

	stats, err := c.SummaryStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Overall.TotalOrders)
	assert.Equal(t, 1, stats.Overall.CancelledOrders)
	assert.InDelta(t, 1129.33, stats.Overall.TotalRevenue, 0.01)
	assert.Contains(t, stats.Overall.DateRange, "2022-04-30")

	require.NotEmpty(t, stats.TopStates)
	assert.Equal(t, "TELANGANA", stats.TopStates[0].State)

	require.Len(t, stats.MonthlyTrend, 2)
	assert.Equal(t, 4, stats.MonthlyTrend[0].Month)
}
