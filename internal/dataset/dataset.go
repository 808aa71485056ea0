// Package dataset loads the daily case distribution table and shapes it into
// per-country series.
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

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/schema"
	"github.com/sirupsen/logrus"
)

// maxPayloadBytes bounds a downloaded dataset.
const maxPayloadBytes = 512 << 20

// HTTPClient is used for remote sources.
var HTTPClient = &http.Client{Timeout: 2 * time.Minute}

// Load reads case records from a local CSV or Parquet file or from an
// http(s) URL. Remote payloads go through store and are reused for ttl.
func Load(ctx context.Context, source string, store contract.CacheStore, ttl time.Duration) ([]schema.CaseRecord, error) {
	log := contract.Logger().WithField("source", source)

	payload, err := fetch(ctx, source, store, ttl, log)
	if err != nil {
		return nil, err
	}
	rows, err := Parse(payload, source)
	if err != nil {
		return nil, err
	}
	log.WithField("rows", len(rows)).Debug("Dataset loaded")
	return rows, nil
}

// Parse decodes a payload as Parquet when name ends in .parquet and as CSV otherwise.
func Parse(payload []byte, name string) ([]schema.CaseRecord, error) {
	if isParquet(name) {
		return ParseParquet(bytes.NewReader(payload), int64(len(payload)))
	}
	return ParseCSV(bytes.NewReader(payload))
}

func fetch(ctx context.Context, source string, store contract.CacheStore, ttl time.Duration, log logrus.FieldLogger) ([]byte, error) {
	if !isRemote(source) {
		payload, err := os.ReadFile(source)
		if err != nil {
			return nil, schema.Dataf("reading %s: %v", source, err)
		}
		return payload, nil
	}

	key := CacheKey(source)
	if payload, ok := cachedPayload(store, key, ttl, log); ok {
		log.Debug("Dataset cache hit")
		return payload, nil
	}

	log.Info("Downloading dataset")
	payload, err := download(ctx, source)
	if err != nil {
		return nil, err
	}
	storePayload(store, key, payload, log)
	return payload, nil
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, schema.Configf("invalid dataset URL %q: %v", url, err)
	}
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, schema.Dataf("downloading %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, schema.Dataf("downloading %s: unexpected status %s", url, resp.Status)
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, schema.Dataf("downloading %s: %v", url, err)
	}
	if len(payload) > maxPayloadBytes {
		return nil, schema.Dataf("downloading %s: payload exceeds %d bytes", url, maxPayloadBytes)
	}
	return payload, nil
}

func isRemote(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isParquet(name string) bool {
	name = strings.ToLower(name)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return strings.HasSuffix(name, ".parquet")
}

// Describe summarizes rows for log lines and headers.
func Describe(rows []schema.CaseRecord) string {
	if len(rows) == 0 {
		return "no rows"
	}
	first, last := rows[0].Date, rows[0].Date
	for _, r := range rows {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return fmt.Sprintf("%d rows, %d countries, %s to %s",
		len(rows), len(Countries(rows)), first.Format(time.DateOnly), last.Format(time.DateOnly))
}
