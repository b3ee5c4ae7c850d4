// Package sqlstore implements the relational course store and a document
// store on top of database/sql. The same schema and queries are used for
// sqlite, libsql and postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"classrefresh/internal/catalog"
	"classrefresh/internal/store"
	"classrefresh/lib/configutil/sqlconfig"

	_ "embed"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:embed schema.sql
var Schema string

var tracer = otel.Tracer("store/sqlstore")

// schemaFor returns the schema in the dialect's own column types.
func schemaFor(dialect sqlconfig.Dialect) string {
	if dialect == sqlconfig.DialectPostgres {
		return strings.ReplaceAll(Schema, " timestamp ", " timestamptz ")
	}
	return Schema
}

// EnsureSchema creates the tables if they do not exist yet, it is safe to
// call on every start.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect sqlconfig.Dialect) error {
	for _, statement := range strings.Split(schemaFor(dialect), ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		_, err := db.ExecContext(ctx, statement)
		if err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites `?` placeholders into the form the dialect expects.
func rebind(dialect sqlconfig.Dialect, query string) string {
	if dialect != sqlconfig.DialectPostgres {
		return query
	}
	var out strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			out.WriteString("$")
			out.WriteString(strconv.Itoa(n))
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

const upsertClass = `insert into classes (
    id, code, name, credits,
    seats_capacity, seats_actual, seats_remaining,
    waitlist_capacity, waitlist_actual, waitlist_remaining,
    restrictions, prerequisites, last_updated
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (id) do update set
    code = excluded.code,
    name = excluded.name,
    credits = excluded.credits,
    seats_capacity = excluded.seats_capacity,
    seats_actual = excluded.seats_actual,
    seats_remaining = excluded.seats_remaining,
    waitlist_capacity = excluded.waitlist_capacity,
    waitlist_actual = excluded.waitlist_actual,
    waitlist_remaining = excluded.waitlist_remaining,
    restrictions = excluded.restrictions,
    prerequisites = excluded.prerequisites,
    last_updated = excluded.last_updated`

const selectClass = `select
    id, code, name, credits,
    seats_capacity, seats_actual, seats_remaining,
    waitlist_capacity, waitlist_actual, waitlist_remaining,
    restrictions, prerequisites, last_updated
from classes`

// Classes is the relational course store, one row per course.
type Classes struct {
	db      *sql.DB
	dialect sqlconfig.Dialect
}

func NewClasses(db *sql.DB, dialect sqlconfig.Dialect) Classes {
	return Classes{db: db, dialect: dialect}
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	value := s.String
	return &value
}

// timestampArg is `t` in the form the dialect's driver stores without
// losing precision, sqlite and libsql keep timestamps as text.
func timestampArg(dialect sqlconfig.Dialect, t time.Time) any {
	if dialect == sqlconfig.DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// timestamp scans a timestamp column whether the driver hands back a
// time.Time or the stored text.
type timestamp struct {
	time.Time
}

func (ts *timestamp) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		ts.Time = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into a timestamp", value)
}

func (ts *timestamp) parse(text string) error {
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, text)
		if err == nil {
			ts.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp '%s'", text)
}

func (c Classes) Upsert(ctx context.Context, course catalog.Course) error {
	ctx, span := tracer.Start(ctx, "classes:upsert")
	defer span.End()
	span.SetAttributes(attribute.Int64("custom.crn", course.ID))

	_, err := c.db.ExecContext(
		ctx,
		rebind(c.dialect, upsertClass),
		course.ID,
		course.Code,
		course.Name,
		course.Credits,
		course.Seats.Capacity,
		course.Seats.Actual,
		course.Seats.Remaining,
		course.Waitlist.Capacity,
		course.Waitlist.Actual,
		course.Waitlist.Remaining,
		nullable(course.Restrictions),
		nullable(course.Prerequisites),
		timestampArg(c.dialect, course.LastUpdated),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert class")
		return fmt.Errorf("upsert class %d: %w", course.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClass(row scanner) (catalog.Course, error) {
	var course catalog.Course
	var restrictions, prerequisites sql.NullString
	var lastUpdated timestamp
	err := row.Scan(
		&course.ID,
		&course.Code,
		&course.Name,
		&course.Credits,
		&course.Seats.Capacity,
		&course.Seats.Actual,
		&course.Seats.Remaining,
		&course.Waitlist.Capacity,
		&course.Waitlist.Actual,
		&course.Waitlist.Remaining,
		&restrictions,
		&prerequisites,
		&lastUpdated,
	)
	if err != nil {
		return catalog.Course{}, err
	}
	course.Restrictions = fromNullable(restrictions)
	course.Prerequisites = fromNullable(prerequisites)
	course.LastUpdated = lastUpdated.Time
	return course, nil
}

func (c Classes) Get(ctx context.Context, id int64) (catalog.Course, error) {
	ctx, span := tracer.Start(ctx, "classes:get", trace.WithAttributes(
		attribute.Int64("custom.crn", id),
	))
	defer span.End()

	row := c.db.QueryRowContext(ctx, rebind(c.dialect, selectClass+" where id = ?"), id)
	course, err := scanClass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Course{}, store.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read class")
		return catalog.Course{}, fmt.Errorf("get class %d: %w", id, err)
	}
	return course, nil
}

func (c Classes) List(ctx context.Context) ([]catalog.Course, error) {
	ctx, span := tracer.Start(ctx, "classes:list")
	defer span.End()

	rows, err := c.db.QueryContext(ctx, selectClass+" order by id")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list classes")
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var courses []catalog.Course
	for rows.Next() {
		course, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("list classes: %w", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return courses, nil
}
