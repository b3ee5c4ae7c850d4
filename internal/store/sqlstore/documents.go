package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"classrefresh/internal/store"
	"classrefresh/lib/configutil/sqlconfig"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const upsertDocument = `insert into documents (collection, key, value) values (?, ?, ?)
on conflict (collection, key) do update set value = excluded.value`

// Documents is a store.DocumentStore kept in the `documents` table.
type Documents struct {
	db      *sql.DB
	dialect sqlconfig.Dialect
}

func NewDocuments(db *sql.DB, dialect sqlconfig.Dialect) Documents {
	return Documents{db: db, dialect: dialect}
}

func (d Documents) Get(ctx context.Context, collection, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "documents:get")
	defer span.End()
	span.SetAttributes(
		attribute.String("custom.collection", collection),
		attribute.String("custom.key", key),
	)

	var value string
	err := d.db.QueryRowContext(
		ctx,
		rebind(d.dialect, "select value from documents where collection = ? and key = ?"),
		collection, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read document")
		return nil, fmt.Errorf("get document %s/%s: %w", collection, key, err)
	}
	return []byte(value), nil
}

func (d Documents) Set(ctx context.Context, collection, key string, value []byte) error {
	ctx, span := tracer.Start(ctx, "documents:set")
	defer span.End()
	span.SetAttributes(
		attribute.String("custom.collection", collection),
		attribute.String("custom.key", key),
		attribute.Int("custom.contentlength", len(value)),
	)

	_, err := d.db.ExecContext(ctx, rebind(d.dialect, upsertDocument), collection, key, string(value))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write document")
		return fmt.Errorf("set document %s/%s: %w", collection, key, err)
	}
	return nil
}

func (d Documents) List(ctx context.Context, collection string) (map[string][]byte, error) {
	ctx, span := tracer.Start(ctx, "documents:list")
	defer span.End()
	span.SetAttributes(attribute.String("custom.collection", collection))

	rows, err := d.db.QueryContext(
		ctx,
		rebind(d.dialect, "select key, value from documents where collection = ?"),
		collection,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list documents")
		return nil, fmt.Errorf("list documents %s: %w", collection, err)
	}
	defer rows.Close()

	documents := map[string][]byte{}
	for rows.Next() {
		var key, value string
		err := rows.Scan(&key, &value)
		if err != nil {
			return nil, fmt.Errorf("list documents %s: %w", collection, err)
		}
		documents[key] = []byte(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents %s: %w", collection, err)
	}
	return documents, nil
}
