package dataset

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

func TestFetcherDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/arrhythmia.data" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(arrhythmiaCSV))
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	d, err := f.LoadArrhythmia(context.Background(), srv.URL+"/arrhythmia.data")
	require.NoError(t, err)
	assert.Equal(t, 4, d.NSamples())

	_, err = f.LoadArrhythmia(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestFetcherCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(arrhythmiaCSV))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Fetcher{}).Open(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetcherLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heart.csv")
	require.NoError(t, os.WriteFile(path, []byte(heartCSV), 0o600))

	d, err := NewFetcher().LoadHeart(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 6, d.NSamples())

	_, err = NewFetcher().LoadHeart(context.Background(), filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}
