package pipeline

import (
	"context"
	"fmt"

	"github.com/telmilabs/telmi/pkg/clickhouse"
)

// ClickHouseQuerier implements Querier over the native ClickHouse
// client. It is a stateless, shared handle: connection pooling lives in
// the driver, not here.
type ClickHouseQuerier struct {
	client clickhouse.Client
}

// NewClickHouseQuerier creates a querier backed by the given client.
func NewClickHouseQuerier(client clickhouse.Client) *ClickHouseQuerier {
	return &ClickHouseQuerier{client: client}
}

// Query executes one statement and returns ordered columns and row
// tuples. Byte-slice values are normalized to strings.
func (q *ClickHouseQuerier) Query(ctx context.Context, sql string) ([]string, [][]any, error) {
	conn, err := q.client.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns := rows.Columns()
	types := rows.ColumnTypes()

	var result [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		for i := range values {
			values[i] = newScanTarget(types[i].ScanType())
		}
		if err := rows.Scan(values...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]any, len(columns))
		for i, v := range values {
			row[i] = normalizeValue(v)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return columns, result, nil
}
