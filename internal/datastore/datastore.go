// Package datastore defines the contract between the query pipeline and the
// tabular store holding the retail sales dataset.
package datastore

import (
	"context"
	"errors"
	"fmt"
)

// ErrStoreUnavailable means the store itself is unreachable. The orchestrator
// treats this as an infrastructure fault: fatal to the turn, no retry.
var ErrStoreUnavailable = errors.New("data store unavailable")

// MalformedQueryError means the store rejected the query text. This is a
// generation fault and triggers the orchestrator's single regeneration retry.
type MalformedQueryError struct {
	Query string
	Err   error
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed query %q: %v", e.Query, e.Err)
}

func (e *MalformedQueryError) Unwrap() error {
	return e.Err
}

// ExecutionResult is the outcome of running one query: ordered rows with
// named columns, values rendered as strings.
type ExecutionResult struct {
	Columns []string
	Rows    [][]string
}

func (r *ExecutionResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Store is the read-only query surface the orchestrator depends on.
type Store interface {
	Execute(ctx context.Context, query string) (*ExecutionResult, error)
	DescribeSchema(ctx context.Context) (string, error)
}

// SummaryStats is the dataset-level rollup backing dashboards and the
// executive summary.
type SummaryStats struct {
	Overall      OverallStats   `json:"overall"`
	TopStates    []RegionStat   `json:"top_states"`
	ByCategory   []CategoryStat `json:"by_category"`
	MonthlyTrend []MonthStat    `json:"monthly_trend"`
}

type OverallStats struct {
	TotalOrders     int     `json:"total_orders"`
	TotalRevenue    float64 `json:"total_revenue"`
	TotalProfit     float64 `json:"total_profit"`
	AvgOrderValue   float64 `json:"avg_order_value"`
	DateRange       string  `json:"date_range"`
	CancelledOrders int     `json:"cancelled_orders"`
}

type RegionStat struct {
	State   string  `json:"state"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type CategoryStat struct {
	Category string  `json:"category"`
	Revenue  float64 `json:"revenue"`
	Orders   int     `json:"orders"`
}

type MonthStat struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
	Orders  int     `json:"orders"`
}

// StatsProvider is implemented by stores that can compute SummaryStats.
type StatsProvider interface {
	SummaryStats(ctx context.Context) (*SummaryStats, error)
}
