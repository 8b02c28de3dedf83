package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/gcs"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/local"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/memory"
)

func TestOpenLocalPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, dest := range []string{
		filepath.Join(dir, "plain.json"),
		"file://" + filepath.Join(dir, "uri.json"),
	} {
		sink, err := Open(context.Background(), dest, Options{})
		require.NoError(t, err, dest)
		require.IsType(t, &local.Sink{}, sink)

		location, err := sink.Write(context.Background(), []crawler.JobRecord{{ID: "1"}})
		require.NoError(t, err)
		assert.Contains(t, location, "file://")
		require.NoError(t, sink.Close())
	}

	_, err := os.Stat(filepath.Join(dir, "plain.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "uri.json"))
	require.NoError(t, err)
}

func TestOpenMemory(t *testing.T) {
	t.Parallel()

	sink, err := Open(context.Background(), "memory://dry-run", Options{})
	require.NoError(t, err)
	require.IsType(t, &memory.Sink{}, sink)
	location, err := sink.Write(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "memory://dry-run", location)
}

func TestOpenGCS(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bucket":"b","name":"o.json"}`))
	}))
	defer server.Close()

	sink, err := Open(context.Background(), "gs://b/o.json", Options{
		ContentType: "application/json",
		GCSEndpoint: server.URL + "/storage/v1/",
	})
	require.NoError(t, err)
	require.IsType(t, &gcs.Sink{}, sink)
	require.NoError(t, sink.Close())
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty":          "  ",
		"unknown scheme": "s3://bucket/key",
		"gcs no object":  "gs://bucket",
		"bad postgres":   "postgres://%zz",
	}
	for name, dest := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Open(context.Background(), dest, Options{})
			require.Error(t, err)
		})
	}
}
