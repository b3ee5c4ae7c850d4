package commands

import (
	"context"
	"database/sql"
	"errors"

	"classrefresh/internal/store"
	"classrefresh/internal/store/badgerstore"
	"classrefresh/internal/store/sqlstore"
)

// app is every store a command may need, opened from the config.
type app struct {
	db         *sql.DB
	classes    sqlstore.Classes
	documents  store.DocumentSink
	aggregator *store.Aggregator

	closers []func() error
}

func openApp(ctx context.Context, cfg Config) (*app, error) {
	a := &app{}

	db, err := cfg.Database.OpenDB()
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	dialect := cfg.Database.GetDialect()
	err = sqlstore.EnsureSchema(ctx, db, dialect)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.classes = sqlstore.NewClasses(db, dialect)

	var docs store.DocumentStore
	switch cfg.Documents.Backend {
	case DocumentsBadger:
		badger, err := badgerstore.Open(cfg.Documents.Badger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, badger.Close)
		docs = badger
	default:
		docs = sqlstore.NewDocuments(db, dialect)
	}

	a.documents = store.NewDocumentSink(docs, cfg.Documents.Collection)
	a.aggregator = store.NewAggregator(
		docs,
		cfg.Documents.AggregateCollection,
		cfg.Documents.AggregateKey,
	)
	return a, nil
}

func (a *app) Close() error {
	var errlist []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errlist = append(errlist, a.closers[i]())
	}
	return errors.Join(errlist...)
}
