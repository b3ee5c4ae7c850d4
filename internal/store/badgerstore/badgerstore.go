// Package badgerstore is a store.DocumentStore on an embedded badger database.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classrefresh/internal/store"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("store/badgerstore")

// Options configures where the database lives, an empty Dir keeps it in
// memory.
type Options struct {
	Dir string `json:"dir"`
}

type Documents struct {
	db *badger.DB
}

// Open opens (or creates) the database described by `opts`.
func Open(opts Options) (*Documents, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.Dir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Documents{db: db}, nil
}

func (d *Documents) Close() error {
	return d.db.Close()
}

// keys are `<collection>/<key>`, collections are assumed not to contain `/`
func documentKey(collection, key string) []byte {
	return []byte(collection + "/" + key)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + "/")
}

func (d *Documents) Get(ctx context.Context, collection, key string) ([]byte, error) {
	_, span := tracer.Start(ctx, "documents:get")
	defer span.End()
	span.SetAttributes(attribute.String("custom.document_key", string(documentKey(collection, key))))

	tx := d.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get(documentKey(collection, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return nil, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy item")
		return nil, err
	}
	return value, nil
}

func (d *Documents) Set(ctx context.Context, collection, key string, value []byte) error {
	_, span := tracer.Start(ctx, "documents:set")
	defer span.End()
	span.SetAttributes(
		attribute.String("custom.document_key", string(documentKey(collection, key))),
		attribute.Int("custom.contentlength", len(value)),
	)

	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(documentKey(collection, key), value)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write item to badger")
		return err
	}
	return nil
}

func (d *Documents) List(ctx context.Context, collection string) (map[string][]byte, error) {
	_, span := tracer.Start(ctx, "documents:list")
	defer span.End()
	span.SetAttributes(attribute.String("custom.collection", collection))

	prefix := collectionPrefix(collection)
	documents := map[string][]byte{}
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			key := strings.TrimPrefix(string(item.Key()), string(prefix))
			documents[key] = value
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to iterate badger")
		return nil, err
	}
	return documents, nil
}
