package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/retail-insights/backend/internal/datastore"
)

// SummaryStats computes the dataset rollup used by the stats endpoint and the
// executive summary.
func (c *Client) SummaryStats(ctx context.Context) (*datastore.SummaryStats, error) {
	stats := &datastore.SummaryStats{}

	var (
		startDate, endDate sql.NullString
		revenue, profit    sql.NullFloat64
		avgOrder           sql.NullFloat64
	)
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*),
			SUM(revenue),
			SUM(estimated_profit),
			AVG(amount),
			MIN(date),
			MAX(date),
			SUM(CASE WHEN is_cancelled = 1 THEN 1 ELSE 0 END)
		FROM %s`, c.table),
	).Scan(
		&stats.Overall.TotalOrders,
		&revenue,
		&profit,
		&avgOrder,
		&startDate,
		&endDate,
		&stats.Overall.CancelledOrders,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", datastore.ErrStoreUnavailable, err)
	}

	stats.Overall.TotalRevenue = round2(revenue.Float64)
	stats.Overall.TotalProfit = round2(profit.Float64)
	stats.Overall.AvgOrderValue = round2(avgOrder.Float64)
	stats.Overall.DateRange = fmt.Sprintf("%s to %s", startDate.String, endDate.String)

	if err := c.topStates(ctx, stats); err != nil {
		return nil, err
	}
	if err := c.byCategory(ctx, stats); err != nil {
		return nil, err
	}
	if err := c.monthlyTrend(ctx, stats); err != nil {
		return nil, err
	}

	return stats, nil
}

func (c *Client) topStates(ctx context.Context, stats *datastore.SummaryStats) error {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT state, SUM(revenue), COUNT(*)
		FROM %s
		WHERE state IS NOT NULL AND state != ''
		GROUP BY state
		ORDER BY SUM(revenue) DESC
		LIMIT 10`, c.table))
	if err != nil {
		return fmt.Errorf("%w: %v", datastore.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var s datastore.RegionStat
		var rev sql.NullFloat64
		if err := rows.Scan(&s.State, &rev, &s.Orders); err != nil {
			return fmt.Errorf("failed to scan state stat: %w", err)
		}
		s.Revenue = round2(rev.Float64)
		stats.TopStates = append(stats.TopStates, s)
	}
	return rows.Err()
}

func (c *Client) byCategory(ctx context.Context, stats *datastore.SummaryStats) error {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT category, SUM(revenue), COUNT(*)
		FROM %s
		WHERE category IS NOT NULL AND category != ''
		GROUP BY category
		ORDER BY SUM(revenue) DESC`, c.table))
	if err != nil {
		return fmt.Errorf("%w: %v", datastore.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var s datastore.CategoryStat
		var rev sql.NullFloat64
		if err := rows.Scan(&s.Category, &rev, &s.Orders); err != nil {
			return fmt.Errorf("failed to scan category stat: %w", err)
		}
		s.Revenue = round2(rev.Float64)
		stats.ByCategory = append(stats.ByCategory, s)
	}
	return rows.Err()
}

func (c *Client) monthlyTrend(ctx context.Context, stats *datastore.SummaryStats) error {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT year, month, SUM(revenue), SUM(estimated_profit), COUNT(*)
		FROM %s
		GROUP BY year, month
		ORDER BY year, month`, c.table))
	if err != nil {
		return fmt.Errorf("%w: %v", datastore.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var s datastore.MonthStat
		var rev, profit sql.NullFloat64
		if err := rows.Scan(&s.Year, &s.Month, &rev, &profit, &s.Orders); err != nil {
			return fmt.Errorf("failed to scan month stat: %w", err)
		}
		s.Revenue = round2(rev.Float64)
		s.Profit = round2(profit.Float64)
		stats.MonthlyTrend = append(stats.MonthlyTrend, s)
	}
	return rows.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
