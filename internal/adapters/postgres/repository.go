package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/subwave/billing-service/internal/domain/ports"
)

// scanner abstracts pgx.Row and pgx.Rows so a single scan function can
// serve both single-row and multi-row queries
type scanner interface {
	Scan(dest ...any) error
}

// repository provides the read and delete operations shared by all entity
// repositories. Entity repositories embed it and add their own INSERT and
// UPDATE statements.
type repository[T any] struct {
	db       ports.DBPort
	scanRow  func(s scanner) (*T, error)
	notFound error
	table    string
	columns  string
}

// executor returns tx when a transaction is in progress, otherwise the pool
func (r *repository[T]) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// GetByID retrieves a single entity by primary key
func (r *repository[T]) GetByID(ctx context.Context, db ports.DBTX, id string) (*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", r.columns, r.table)
	return r.queryOne(ctx, db, query, id)
}

// GetMany lists entities matching the given equality filters, newest first.
// Filter keys are column names supplied by services, never request input.
// Nil filter values are ignored. A non-positive limit disables pagination.
func (r *repository[T]) GetMany(ctx context.Context, db ports.DBTX, filters map[string]interface{}, limit, offset int32) ([]*T, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", r.columns, r.table)

	keys := make([]string, 0, len(filters))
	for k, v := range filters {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys)+2)
	for i, k := range keys {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, filters[k])
		fmt.Fprintf(&sb, "%s = $%d", k, len(args))
	}

	sb.WriteString(" ORDER BY created_at DESC")

	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
		args = append(args, offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.executor(db).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// Delete removes an entity row by primary key
func (r *repository[T]) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table)
	tag, err := r.executor(tx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", r.table, err)
	}
	if tag.RowsAffected() == 0 {
		return r.notFound
	}
	return nil
}

// queryOne runs a single-row query and maps a missing row to the
// repository's not-found error
func (r *repository[T]) queryOne(ctx context.Context, db ports.DBTX, query string, args ...any) (*T, error) {
	row := r.executor(db).QueryRow(ctx, query, args...)
	entity, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.notFound
		}
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	return entity, nil
}

// queryOneOrNil runs a single-row query where absence is a normal outcome
// and returns (nil, nil) when no row matches
func (r *repository[T]) queryOneOrNil(ctx context.Context, db ports.DBTX, query string, args ...any) (*T, error) {
	row := r.executor(db).QueryRow(ctx, query, args...)
	entity, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	return entity, nil
}

func (r *repository[T]) collect(rows pgx.Rows) ([]*T, error) {
	var entities []*T
	for rows.Next() {
		entity, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", r.table, err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", r.table, err)
	}
	return entities, nil
}
