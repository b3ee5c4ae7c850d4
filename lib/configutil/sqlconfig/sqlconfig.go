// Package sqlconfig is the configuration block for any database/sql backed store.
package sqlconfig

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSqlite   Dialect = "sqlite"
	DialectLibsql   Dialect = "libsql"
	DialectPostgres Dialect = "postgres"
)

type Struct struct {
	// Dialect defaults to sqlite when empty.
	Dialect   Dialect `json:"dialect"`
	File      string  `json:"file"`
	Url       string  `json:"url"`
	AuthToken string  `json:"auth_token"`
}

func (config Struct) GetDialect() Dialect {
	if config.Dialect == "" {
		return DialectSqlite
	}
	return config.Dialect
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

func (config Struct) OpenDB() (*sql.DB, error) {
	switch config.GetDialect() {
	case DialectSqlite:
		return config.openSqlite()
	case DialectLibsql:
		if config.Url == "" {
			return nil, wrapOpenDB(fmt.Errorf("libsql requires a url"))
		}
		values := url.Values{}
		if config.AuthToken != "" {
			values.Add("authToken", config.AuthToken)
		}
		dsn := config.Url
		if len(values) > 0 {
			dsn += "?" + values.Encode()
		}
		db, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
		return db, nil
	case DialectPostgres:
		if config.Url == "" {
			return nil, wrapOpenDB(fmt.Errorf("postgres requires a url"))
		}
		db, err := sql.Open("pgx", config.Url)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
		return db, nil
	default:
		return nil, wrapOpenDB(fmt.Errorf("unknown dialect '%s'", config.Dialect))
	}
}

func (config Struct) openSqlite() (*sql.DB, error) {
	if config.File == "" {
		return nil, wrapOpenDB(fmt.Errorf("a path was not specified"))
	}
	if config.File != ":memory:" {
		err := os.MkdirAll(filepath.Dir(config.File), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}

	return db, nil
}
