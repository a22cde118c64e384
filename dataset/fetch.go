package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
)

// Fetcher retrieves dataset sources from local paths or HTTP(S) URLs.
type Fetcher struct {
	Client *http.Client
	// Progress receives the download bar; nil disables it.
	Progress io.Writer
}

// NewFetcher returns a Fetcher with a one-minute client timeout that draws
// progress on stderr.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: time.Minute},
		Progress: os.Stderr,
	}
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Open returns the contents of source: a file path or an http(s) URL.
func (f *Fetcher) Open(ctx context.Context, source string) ([]byte, error) {
	if !isURL(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, errors.Wrapf(err, "dataset: reading %s", source)
		}
		return data, nil
	}
	return f.download(ctx, source)
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	logger := log.GetLoggerWithName("dataset")
	logger.Info("Download dataset", "source", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: building request")
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: downloading %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("dataset: downloading %s: unexpected status %s", url, resp.Status)
	}

	var body io.Reader = resp.Body
	if f.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(f.Progress),
			progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", url[strings.LastIndex(url, "/")+1:])),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		pbReader := progressbar.NewReader(resp.Body, bar)
		body = &pbReader
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, errors.Wrapf(err, "dataset: downloading %s", url)
	}
	logger.Debug("Download complete", "bytes", buf.Len())
	return buf.Bytes(), nil
}

// LoadHeart reads the heart CSV from source.
func (f *Fetcher) LoadHeart(ctx context.Context, source string) (*Dataset, error) {
	data, err := f.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	return ReadHeart(bytes.NewReader(data))
}

// LoadArrhythmia reads the arrhythmia data from source; an empty source
// means DefaultArrhythmiaURL.
func (f *Fetcher) LoadArrhythmia(ctx context.Context, source string) (*Dataset, error) {
	if source == "" {
		source = DefaultArrhythmiaURL
	}
	data, err := f.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	return ReadArrhythmia(bytes.NewReader(data))
}
