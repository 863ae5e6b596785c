package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// maxRowsPerInsert keeps each statement well under SQLite's bound-variable
// limit for the widest table written in bulk.
const maxRowsPerInsert = 200

// insertRows writes n rows with one multi-row INSERT per chunk, preserving
// input order, and returns the ids SQLite assigned to them. It must run
// inside tx so a failed chunk aborts the whole batch.
func insertRows(ctx context.Context, tx *sql.Tx, table string, cols []string, n int, row func(i int) []any) ([]int64, error) {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	prefix := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES "

	ids := make([]int64, 0, n)
	for start := 0; start < n; start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, n)

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, (end-start)*len(cols))
		for i := start; i < end; i++ {
			if i > start {
				b.WriteString(", ")
			}
			b.WriteString(placeholder)
			args = append(args, row(i)...)
		}

		result, err := tx.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return nil, fmt.Errorf("bulk insert %s: %w", table, err)
		}
		last, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		// Rows of one statement get consecutive rowids in VALUES order.
		first := last - int64(end-start) + 1
		for id := first; id <= last; id++ {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
