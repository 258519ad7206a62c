package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWritesBodyAndReturnsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello, world!"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "hello.txt")
	contentType, err := New(server.Client()).Fetch(context.Background(), server.URL, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", contentType)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello, world!", string(data))

	_, statErr := os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(statErr), "temp file should be renamed away")
}

func TestFetchNon200IsDownloadFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "hello.txt")
	_, err := New(server.Client()).Fetch(context.Background(), server.URL, dest, nil)
	require.ErrorIs(t, err, ErrDownloadFailed)
}

func TestFetchRejectedByPredicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello, world!"))
	}))
	defer server.Close()

	reject := func(url string, header http.Header) bool { return false }
	dest := filepath.Join(t.TempDir(), "hello.txt")
	_, err := New(server.Client()).Fetch(context.Background(), server.URL, dest, reject)
	require.ErrorIs(t, err, ErrDownloadRejected)
}

func TestDefaultAcceptAllowsZipAndGtarOnly(t *testing.T) {
	zipHeader := http.Header{"Content-Type": []string{"application/zip"}}
	gtarHeader := http.Header{"Content-Type": []string{"application/x-gtar"}}
	otherHeader := http.Header{"Content-Type": []string{"text/plain"}}

	assert.True(t, DefaultAccept("u", zipHeader))
	assert.True(t, DefaultAccept("u", gtarHeader))
	assert.False(t, DefaultAccept("u", otherHeader))
}
