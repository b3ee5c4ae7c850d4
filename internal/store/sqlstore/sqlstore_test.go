package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"classrefresh/internal/store/storetest"
	"classrefresh/lib/configutil/sqlconfig"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func openSqlite(t testing.TB) *sql.DB {
	db, err := sqlconfig.Struct{File: ":memory:"}.OpenDB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	err = EnsureSchema(context.Background(), db, sqlconfig.DialectSqlite)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestClassesSqlite(t *testing.T) {
	db := openSqlite(t)
	storetest.TestStore(t, NewClasses(db, sqlconfig.DialectSqlite))
}

func TestDocumentsSqlite(t *testing.T) {
	db := openSqlite(t)
	storetest.TestDocumentStore(t, NewDocuments(db, sqlconfig.DialectSqlite))
}

func TestEnsureSchemaTwice(t *testing.T) {
	db := openSqlite(t)
	require.NoError(t, EnsureSchema(context.Background(), db, sqlconfig.DialectSqlite))
}

func TestClassesKeepSubsecondTimestamps(t *testing.T) {
	db := openSqlite(t)
	classes := NewClasses(db, sqlconfig.DialectSqlite)
	ctx := context.Background()

	course := storetest.Course(80007)
	course.LastUpdated = time.Date(2020, 8, 1, 12, 30, 15, 123456789, time.UTC)
	require.NoError(t, classes.Upsert(ctx, course))

	read, err := classes.Get(ctx, 80007)
	require.NoError(t, err)
	require.True(t, course.LastUpdated.Equal(read.LastUpdated), "got %s", read.LastUpdated)
	require.Equal(t, time.UTC, read.LastUpdated.Location())
}

func TestTimestampScan(t *testing.T) {
	want := time.Date(2020, 8, 1, 12, 30, 15, 500000000, time.UTC)
	table := []struct {
		name  string
		value any
	}{
		{name: "time", value: want.In(time.FixedZone("EDT", -4*60*60))},
		{name: "rfc3339", value: "2020-08-01T12:30:15.5Z"},
		{name: "sqlite default", value: "2020-08-01 08:30:15.5-04:00"},
		{name: "bytes", value: []byte("2020-08-01 12:30:15.5")},
	}
	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			var ts timestamp
			require.NoError(t, ts.Scan(test.value))
			require.Equal(t, want, ts.Time)
		})
	}

	var ts timestamp
	require.Error(t, ts.Scan(int64(1596285015)))
	require.Error(t, ts.Scan("yesterday"))
}

func TestSchemaFor(t *testing.T) {
	require.Contains(t, schemaFor(sqlconfig.DialectSqlite), "last_updated timestamp not null")
	require.Contains(t, schemaFor(sqlconfig.DialectPostgres), "last_updated timestamptz not null")
}

func TestRebind(t *testing.T) {
	query := "select * from documents where collection = ? and key = ?"
	require.Equal(t, query, rebind(sqlconfig.DialectSqlite, query))
	require.Equal(t, query, rebind(sqlconfig.DialectLibsql, query))
	require.Equal(
		t,
		"select * from documents where collection = $1 and key = $2",
		rebind(sqlconfig.DialectPostgres, query),
	)
}

func openPostgres(t testing.TB) *sql.DB {
	if os.Getenv("CLASSREFRESH_DOCKER_TESTS") == "" {
		t.Skip("CLASSREFRESH_DOCKER_TESTS is not set")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*2)
	defer cancel()

	postgres, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:16-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_USER":     "classrefresh",
					"POSTGRES_PASSWORD": "classrefresh",
					"POSTGRES_DB":       "classrefresh",
				},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2),
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		err := postgres.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	})

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	db, err := sqlconfig.Struct{
		Dialect: sqlconfig.DialectPostgres,
		Url: fmt.Sprintf(
			"postgres://classrefresh:classrefresh@%s:%s/classrefresh?sslmode=disable",
			host, port.Port(),
		),
	}.OpenDB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	err = EnsureSchema(ctx, db, sqlconfig.DialectPostgres)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestPostgres(t *testing.T) {
	db := openPostgres(t)

	t.Run("classes", func(t *testing.T) {
		storetest.TestStore(t, NewClasses(db, sqlconfig.DialectPostgres))
	})
	t.Run("documents", func(t *testing.T) {
		storetest.TestDocumentStore(t, NewDocuments(db, sqlconfig.DialectPostgres))
	})
}
