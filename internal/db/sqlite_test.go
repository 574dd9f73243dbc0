package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/moodtune/internal/dataset"
	"github.com/justestif/moodtune/internal/emotion"
)

func openMemory(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	records := dataset.NewGenerator(3).Generate(50)

	require.NoError(t, s.ReplaceAll(ctx, records))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestSQLiteReplaceAllReplaces(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	gen := dataset.NewGenerator(4)

	require.NoError(t, s.ReplaceAll(ctx, gen.Generate(20)))
	second := gen.Generate(5)
	require.NoError(t, s.ReplaceAll(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestSQLiteAppend(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	gen := dataset.NewGenerator(5)

	require.NoError(t, s.Append(ctx, gen.Generate(3)))
	require.NoError(t, s.Append(ctx, gen.Generate(4)))
	require.NoError(t, s.Append(ctx, nil))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestSQLiteEmptyIsNoData(t *testing.T) {
	s := openMemory(t)

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, dataset.ErrNoData)
}

func TestSQLiteRejectsInvalidRecordsAtomically(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	records := dataset.NewGenerator(6).Generate(3)
	require.NoError(t, s.ReplaceAll(ctx, records))

	bad := append(dataset.NewGenerator(7).Generate(2), dataset.Record{Title: "x", Emotion: emotion.Label(42)})
	err := s.ReplaceAll(ctx, bad)
	assert.ErrorIs(t, err, emotion.ErrUnknownLabel)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestSQLiteUnknownStoredLabel(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	_, err := s.DB().Exec(`INSERT INTO tracks (`+selectColumns+`) VALUES ('t', 'a', 'ecstatic', 0, 0, 0, 100, 0, 0, 0, 0)`)
	require.NoError(t, err)

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, emotion.ErrUnknownLabel)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		dsn     string
		wantErr error
	}{
		{"bare path", filepath.Join(dir, "a", "tracks.db"), nil},
		{"sqlite url", "sqlite://" + filepath.Join(dir, "b.db"), nil},
		{"memory", ":memory:", nil},
		{"empty", "", ErrUnsupportedDSN},
		{"unknown scheme", "mysql://localhost/x", ErrUnsupportedDSN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.dsn)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Append(ctx, dataset.NewGenerator(1).Generate(2)))
			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestOpenPersistsAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracks.db")
	records := dataset.NewGenerator(8).Generate(10)

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceAll(ctx, records))
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

// TestPostgresRoundTrip runs against a live server when MOODTUNE_TEST_POSTGRES_URL is set.
func TestPostgresRoundTrip(t *testing.T) {
	url := os.Getenv("MOODTUNE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("MOODTUNE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	store, err := Open(ctx, url)
	require.NoError(t, err)
	defer store.Close()

	records := dataset.NewGenerator(9).Generate(25)
	require.NoError(t, store.ReplaceAll(ctx, records))
	require.NoError(t, store.Append(ctx, records[:5]))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, append(records, records[:5]...), got)

	require.NoError(t, store.ReplaceAll(ctx, nil))
	_, err = store.Load(ctx)
	assert.True(t, errors.Is(err, dataset.ErrNoData))
}
