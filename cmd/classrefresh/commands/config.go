package commands

import (
	"fmt"
	"time"

	"classrefresh/internal/alert"
	"classrefresh/internal/catalog"
	"classrefresh/internal/pipeline"
	"classrefresh/internal/store/badgerstore"
	"classrefresh/lib/configutil/sqlconfig"
)

type CatalogConfig struct {
	// Endpoint is the detailed schedule url, see catalog.FetcherOptions.
	Endpoint               string  `json:"endpoint"`
	UserAgent              string  `json:"user_agent"`
	TimeoutSeconds         int     `json:"timeout_seconds"`
	ConnectionRetrySeconds int     `json:"connection_retry_seconds"`
	RateLimitSeconds       int     `json:"rate_limit_seconds"`
	MaxAttempts            int     `json:"max_attempts"`
	RequestsPerSecond      float64 `json:"requests_per_second"`
	CloudflareBypass       bool    `json:"cloudflare_bypass"`
	DumpDir                string  `json:"dump_dir"`
}

func (c CatalogConfig) FetcherOptions(term string) catalog.FetcherOptions {
	return catalog.FetcherOptions{
		Endpoint:             c.Endpoint,
		Term:                 term,
		UserAgent:            c.UserAgent,
		Timeout:              time.Duration(c.TimeoutSeconds) * time.Second,
		ConnectionRetryDelay: time.Duration(c.ConnectionRetrySeconds) * time.Second,
		RateLimitDelay:       time.Duration(c.RateLimitSeconds) * time.Second,
		MaxAttempts:          c.MaxAttempts,
		RequestsPerSecond:    c.RequestsPerSecond,
		CloudflareBypass:     c.CloudflareBypass,
		DumpDir:              c.DumpDir,
	}
}

const (
	DocumentsSql    = "sql"
	DocumentsBadger = "badger"
)

type DocumentsConfig struct {
	// Backend is "sql" (the documents table of the main database) or
	// "badger".
	Backend string              `json:"backend"`
	Badger  badgerstore.Options `json:"badger"`
	// Collection holds one document per course.
	Collection          string `json:"collection"`
	AggregateCollection string `json:"aggregate_collection"`
	AggregateKey        string `json:"aggregate_key"`
}

type AlertConfig struct {
	Smtp alert.SmtpConfig `json:"smtp"`
}

type Config struct {
	Catalog   CatalogConfig    `json:"catalog"`
	Run       pipeline.Config  `json:"run"`
	Database  sqlconfig.Struct `json:"database"`
	Documents DocumentsConfig  `json:"documents"`
	Alert     AlertConfig      `json:"alert"`
	// RetryAttempts bounds writes to the stores, see store.RetryOptions.
	RetryAttempts int `json:"retry_attempts"`
}

func (c *Config) SetDefaults() {
	if c.Database.File == "" && c.Database.GetDialect() == sqlconfig.DialectSqlite {
		c.Database.File = "classes.db"
	}
	if c.Documents.Backend == "" {
		c.Documents.Backend = DocumentsSql
	}
	c.Run.SetDefaults()
}

func (c Config) Validate() error {
	switch c.Database.GetDialect() {
	case sqlconfig.DialectSqlite, sqlconfig.DialectLibsql, sqlconfig.DialectPostgres:
	default:
		return fmt.Errorf("unknown database dialect '%s'", c.Database.Dialect)
	}
	switch c.Documents.Backend {
	case DocumentsSql, DocumentsBadger:
	default:
		return fmt.Errorf("unknown documents backend '%s'", c.Documents.Backend)
	}
	return nil
}
