package iocache

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/coronacaster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetManager clears the global manager so InitCaching can run again.
func resetManager(t *testing.T) {
	t.Helper()
	initOnce = sync.Once{}
	closeOnce = sync.Once{}
	Manager.Lock()
	Manager.cache, Manager.runs = nil, nil
	Manager.Unlock()
	t.Cleanup(func() {
		CloseCaching()
		initOnce = sync.Once{}
		closeOnce = sync.Once{}
	})
}

func TestInitCaching(t *testing.T) {
	t.Run("sqlite files", func(t *testing.T) {
		resetManager(t)
		dir := t.TempDir()
		cachePath := filepath.Join(dir, "cache.db")
		runPath := filepath.Join(dir, "runs.db")

		err := InitCaching(schema.SQLiteBackend, cachePath, schema.SQLiteBackend, runPath)
		require.NoError(t, err)
		assert.NotNil(t, Manager.GetCacheStore())
		assert.NotNil(t, Manager.GetRunStore())

		CloseCaching()
		for _, p := range []string{cachePath, runPath} {
			_, err := os.Stat(p)
			assert.NoError(t, err, "%s should exist", p)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		resetManager(t)
		for range 3 {
			assert.NoError(t, InitCaching(schema.SQLiteBackend, ":memory:", "", ""))
		}
		assert.NotNil(t, Manager.GetCacheStore())
		assert.Nil(t, Manager.GetRunStore(), "empty run backend disables tracking")
		CloseCaching()
		CloseCaching()
	})

	t.Run("both none", func(t *testing.T) {
		resetManager(t)
		require.NoError(t, InitCaching(schema.NoneBackend, "", schema.NoneBackend, ""))

		cache := Manager.GetCacheStore()
		require.NotNil(t, cache)
		assert.NoError(t, cache.Set("k", []byte("v"), 1, 1000))
		_, _, _, err := cache.Get("k")
		assert.ErrorIs(t, err, sql.ErrNoRows)

		runs := Manager.GetRunStore()
		require.NotNil(t, runs)
		id, err := runs.BeginRun(time.Now(), nil)
		assert.NoError(t, err)
		assert.Zero(t, id)
	})

	t.Run("bad run backend closes the cache", func(t *testing.T) {
		resetManager(t)
		err := InitCaching(schema.SQLiteBackend, ":memory:", "bogus", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run store")
		assert.Nil(t, Manager.GetCacheStore())
	})

	t.Run("unreachable mysql", func(t *testing.T) {
		resetManager(t)
		err := InitCaching(schema.MySQLBackend, "invalid://connection", "", "")
		assert.Error(t, err)
	})
}

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name      string
		tableName string
		wantErr   bool
	}{
		{"simple", "dataset_cache", false},
		{"numbers", "cache_123", false},
		{"leading underscore", "_cache", false},
		{"mixed case", "DatasetCache", false},
		{"long", strings.Repeat("a", 1000), false},
		{"empty", "", true},
		{"starts with number", "123_table", true},
		{"dash", "dataset-cache", true},
		{"space", "dataset cache", true},
		{"dot", "main.cache", true},
		{"injection", "x'; DROP TABLE users; --", true},
		{"unicode", "cache_表", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTableName(tt.tableName)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, `"t"`, quoteTableName("t", schema.SQLiteBackend))
	assert.Equal(t, "`t`", quoteTableName("t", schema.MySQLBackend))
	assert.Equal(t, `"t"`, quoteTableName("t", schema.PostgreSQLBackend))
	assert.Equal(t, `"t"`, quoteTableName("t", schema.NoneBackend))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", placeholders(schema.SQLiteBackend, 1, 3))
	assert.Equal(t, "?", placeholders(schema.MySQLBackend, 4, 1))
	assert.Equal(t, "$3, $4", placeholders(schema.PostgreSQLBackend, 3, 2))
	assert.Empty(t, placeholders(schema.PostgreSQLBackend, 1, 0))
}

func TestCacheStore_SQLite(t *testing.T) {
	store, err := NewCacheStore("dataset_cache", schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, _, _, err = store.Get("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, store.Set("ecdc", []byte("first"), 1, 1000))
	require.NoError(t, store.Set("ecdc", []byte("second"), 2, 2000))

	value, version, ts, err := store.Get("ecdc")
	require.NoError(t, err)
	assert.Equal(t, "second", string(value), "upsert replaces the payload")
	assert.Equal(t, 2, version)
	assert.Equal(t, int64(2000), ts)
}

func TestCacheStore_LargePayload(t *testing.T) {
	store, err := NewCacheStore("dataset_cache", schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	payload := []byte(strings.Repeat("2020-03-01,Testland,10,0\n", 200_000))
	require.NoError(t, store.Set("big", payload, 1, 1))
	got, _, _, err := store.Get("big")
	require.NoError(t, err)
	assert.Equal(t, len(payload), len(got))
}

func TestGetUpsertQuery(t *testing.T) {
	tests := []struct {
		backend schema.DatabaseBackend
		want    []string
	}{
		{schema.SQLiteBackend, []string{"INSERT OR REPLACE", `"t"`, "?, ?, ?, ?"}},
		{schema.MySQLBackend, []string{"ON DUPLICATE KEY UPDATE", "`t`"}},
		{schema.PostgreSQLBackend, []string{"ON CONFLICT (cache_key)", "$1, $2, $3, $4"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			got := getUpsertQuery("t", tt.backend)
			for _, want := range tt.want {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestGetCreateTableQuery(t *testing.T) {
	assert.Contains(t, getCreateTableQuery("t", schema.SQLiteBackend), "cache_value BLOB NOT NULL")
	assert.Contains(t, getCreateTableQuery("t", schema.MySQLBackend), "cache_value LONGBLOB NOT NULL")
	assert.Contains(t, getCreateTableQuery("t", schema.PostgreSQLBackend), "cache_value BYTEA NOT NULL")
}

func TestNewCacheStoreErrors(t *testing.T) {
	_, err := NewCacheStore("bad-name", schema.SQLiteBackend, ":memory:")
	assert.Error(t, err)

	_, err = NewCacheStore("", schema.SQLiteBackend, ":memory:")
	assert.Error(t, err)

	_, err = NewCacheStore("dataset_cache", "unsupported", "")
	assert.ErrorContains(t, err, "unsupported backend")
}

func TestCacheStore_NoneBackend(t *testing.T) {
	store, err := NewCacheStore("dataset_cache", schema.NoneBackend, "")
	require.NoError(t, err)

	assert.NoError(t, store.Set("k", []byte("v"), 1, 1))
	_, _, _, err = store.Get("k")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "none", status.Backend)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestCacheStoreGetStatus(t *testing.T) {
	t.Run("with data", func(t *testing.T) {
		store, err := NewCacheStore("dataset_cache", schema.SQLiteBackend, ":memory:")
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		for i, ts := range []int64{1000, 2000, 1500} {
			require.NoError(t, store.Set(string(rune('a'+i)), []byte("payload"), 1, ts))
		}

		status, err := store.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, "sqlite", status.Backend)
		assert.True(t, status.Connected)
		assert.Equal(t, 3, status.TotalEntries)
		assert.Equal(t, time.Unix(2000, 0), status.LastEntryTime)
		assert.Equal(t, time.Unix(1000, 0), status.OldestEntryTime)
		assert.Positive(t, status.TableSizeBytes)
	})

	t.Run("empty", func(t *testing.T) {
		store, err := NewCacheStore("dataset_cache", schema.SQLiteBackend, ":memory:")
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		status, err := store.GetStatus()
		require.NoError(t, err)
		assert.Zero(t, status.TotalEntries)
		assert.True(t, status.LastEntryTime.IsZero())
	})
}

func TestCacheStoreManagerConcurrency(t *testing.T) {
	resetManager(t)
	require.NoError(t, InitCaching(schema.SQLiteBackend, ":memory:", "", ""))

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			store := Manager.GetCacheStore()
			if assert.NotNil(t, store) {
				assert.NoError(t, store.Set("shared", []byte("v"), 1, int64(1000+i)))
			}
		})
	}
	wg.Wait()

	_, _, ts, err := Manager.GetCacheStore().Get("shared")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts, int64(1000))
}

func TestClearCache(t *testing.T) {
	t.Run("sqlite file removed", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "cache.db")
		store, err := NewCacheStore(datasetTable, schema.SQLiteBackend, dbPath)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		require.NoError(t, ClearCache(schema.SQLiteBackend, dbPath, ""))
		_, err = os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("sqlite missing file", func(t *testing.T) {
		assert.NoError(t, ClearCache(schema.SQLiteBackend, filepath.Join(t.TempDir(), "nope.db"), ""))
	})

	t.Run("sqlite empty path", func(t *testing.T) {
		assert.Error(t, ClearCache(schema.SQLiteBackend, "", ""))
	})

	t.Run("none", func(t *testing.T) {
		assert.NoError(t, ClearCache(schema.NoneBackend, "", ""))
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, ClearCache("unsupported", "", ""))
	})
}

func TestNullTimeScan(t *testing.T) {
	want := time.Date(2020, 4, 1, 12, 30, 0, 500, time.UTC)

	var nt nullTime
	require.NoError(t, nt.Scan(want.Format(time.RFC3339Nano)))
	assert.True(t, want.Equal(nt.Time))

	require.NoError(t, nt.Scan([]byte("2020-04-01 12:30:00.000001")))
	assert.Equal(t, 1000, nt.Time.Nanosecond())

	require.NoError(t, nt.Scan(want))
	assert.Equal(t, want, *nt.Ptr())

	require.NoError(t, nt.Scan(nil))
	assert.Nil(t, nt.Ptr())

	assert.Error(t, nt.Scan("yesterday"))
	assert.Error(t, nt.Scan(42))
}
