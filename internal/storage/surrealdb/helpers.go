package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// isNotFoundError reports whether a SurrealDB error means the record is absent.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// queryRecords runs a query and returns the first statement's rows as pointers.
func queryRecords[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]*T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}

	var out []*T
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			out = append(out, &(*results)[0].Result[i])
		}
	}
	return out, nil
}

// queryOne returns the first row of a query, or nil when there is none.
func queryOne[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) (*T, error) {
	rows, err := queryRecords[T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// deleteWhere deletes every row of table matching where and returns how many went.
func deleteWhere(ctx context.Context, db *surrealdb.DB, table, where string, vars map[string]any) (int, error) {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s RETURN BEFORE", table, where)
	results, err := surrealdb.Query[[]map[string]any](ctx, db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}
