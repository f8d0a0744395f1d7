package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
)

const embeddingCacheTTL = 24 * time.Hour

// CachedEmbedder is a read-through cache in front of an Embedder. Cache
// errors degrade to the inner provider; they never fail an embed call.
type CachedEmbedder struct {
	log   *logger.Logger
	inner Embedder
	rdb   *goredis.Client
	model string
}

// NewCachedEmbedder returns the inner embedder unchanged when rdb is nil, so
// wiring stays unconditional at the call site.
func NewCachedEmbedder(log *logger.Logger, inner Embedder, rdb *goredis.Client, model string) Embedder {
	if rdb == nil {
		return inner
	}
	return &CachedEmbedder{
		log:   log.With("service", "CachedEmbedder"),
		inner: inner,
		rdb:   rdb,
		model: model,
	}
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) EmbedOne(ctx context.Context, input string) ([]float32, error) {
	key := c.key(input)
	if vector, ok := c.get(ctx, key); ok {
		return vector, nil
	}
	vector, err := c.inner.EmbedOne(ctx, input)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, vector)
	return vector, nil
}

// Embed serves hits from the cache and sends only the misses to the inner
// provider, preserving input order in the result.
func (c *CachedEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	var missIdx []int
	var missTexts []string
	for i, input := range inputs {
		if vector, ok := c.get(ctx, c.key(input)); ok {
			out[i] = vector
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, input)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		c.put(ctx, c.key(inputs[i]), vectors[j])
	}
	return out, nil
}

func (c *CachedEmbedder) key(input string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + input))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Debug("embedding cache read failed", "error", err)
		}
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil || len(vector) != c.inner.Dimension() {
		return nil, false
	}
	return vector, true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vector []float32) {
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, embeddingCacheTTL).Err(); err != nil {
		c.log.Debug("embedding cache write failed", "error", err)
	}
}
