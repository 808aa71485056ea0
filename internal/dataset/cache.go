package dataset

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
)

// cacheVersion is bumped whenever the cached payload layout changes.
const cacheVersion = 1

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
		}
		return encoder
	},
}

// CacheKey derives the cache key of a remote source.
func CacheKey(source string) string {
	return fmt.Sprintf("dataset:%016x", xxhash.Sum64String(source))
}

func compress(data []byte) []byte {
	encoder := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(encoder)
	return encoder.EncodeAll(data, nil)
}

func decompress(data []byte) ([]byte, error) {
	decoder := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// cachedPayload returns the cached payload of key when it is current.
func cachedPayload(store contract.CacheStore, key string, ttl time.Duration, log logrus.FieldLogger) ([]byte, bool) {
	if store == nil {
		return nil, false
	}
	data, version, ts, err := store.Get(key)
	if err != nil || data == nil {
		return nil, false
	}
	if version != cacheVersion {
		log.WithField("version", version).Debug("Dataset cache version mismatch")
		return nil, false
	}
	if ttl > 0 && time.Since(time.Unix(ts, 0)) > ttl {
		log.WithField("age", time.Since(time.Unix(ts, 0)).Round(time.Second)).Debug("Dataset cache entry expired")
		return nil, false
	}
	payload, err := decompress(data)
	if err != nil {
		log.WithError(err).Warn("Discarding unreadable dataset cache entry")
		return nil, false
	}
	return payload, true
}

// storePayload saves payload under key. Failures only cost a future download.
func storePayload(store contract.CacheStore, key string, payload []byte, log logrus.FieldLogger) {
	if store == nil {
		return
	}
	if err := store.Set(key, compress(payload), cacheVersion, time.Now().Unix()); err != nil {
		log.WithError(err).Warn("Failed to cache dataset")
	}
}
