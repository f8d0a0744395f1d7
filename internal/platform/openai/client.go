package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/ctxutil"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
)

// Client is the embedding provider boundary. Only embeddings are used by this
// service; text generation stays out of scope.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedOne(ctx context.Context, input string) ([]float32, error)
	Dimension() int
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	embedModel string
	dimension  int
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger, dimension int) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("openai: logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("openai: OPENAI_API_KEY is required")
	}
	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	embedModel := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = 1536
	}
	return &client{
		log:        log.With("client", "OpenAI"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
	}, nil
}

func (c *client) Dimension() int { return c.dimension }

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *client) EmbedOne(ctx context.Context, input string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, domain.Errorf(domain.KindEmbeddingFailure, "openai.embed_one", "expected 1 vector, got %d", len(vecs))
	}
	return vecs[0], nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	const op = "openai.embed"
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			return nil, domain.Errorf(domain.KindInvalidInput, op, "input %d is empty", i)
		}
		clean[i] = s
	}

	req := embeddingsRequest{Model: c.embedModel, Input: clean}
	// text-embedding-3-* accepts a dimensions override; older models do not.
	if c.dimension != 1536 && strings.HasPrefix(c.embedModel, "text-embedding-3") {
		req.Dimensions = c.dimension
	}

	var resp embeddingsResponse
	if err := c.do(ctx, http.MethodPost, "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, domain.Errorf(domain.KindEmbeddingFailure, op, "provider error: %s", resp.Error.Message)
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i, vec := range out {
		if len(vec) == 0 {
			return nil, domain.Errorf(domain.KindEmbeddingFailure, op, "missing embedding for input %d", i)
		}
		if err := validateVector(vec, c.dimension); err != nil {
			return nil, domain.E(domain.KindEmbeddingFailure, op, err)
		}
	}
	return out, nil
}

// validateVector rejects zero-dimension, NaN/Inf, and all-zero vectors before
// they ever reach a store write.
func validateVector(vec []float32, wantDim int) error {
	if wantDim > 0 && len(vec) != wantDim {
		return fmt.Errorf("vector dimension mismatch: expected=%d got=%d", wantDim, len(vec))
	}
	allZero := true
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("vector contains non-finite value")
		}
		if v != 0 {
			allZero = false
		}
	}
	if allZero {
		return fmt.Errorf("vector is all zeros")
	}
	return nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	const op = "openai.request"
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctxutil.Default(ctx).Done():
				return domain.E(domain.KindCancelled, op, ctx.Err())
			case <-time.After(backoff):
			}
		}

		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return domain.E(domain.KindEmbeddingFailure, op, err)
		}
		req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, &buf)
		if err != nil {
			return domain.E(domain.KindEmbeddingFailure, op, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx != nil && ctx.Err() != nil {
				return domain.E(domain.KindCancelled, op, ctx.Err())
			}
			lastErr = err
			continue
		}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		// 429 and 5xx are the provider's transient signals; everything else
		// in the error range is permanent and not worth retrying.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("openai status=%d body=%s", resp.StatusCode, truncate(raw))
			c.log.Warn("embedding request transient failure", "status", resp.StatusCode, "attempt", attempt)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return domain.Errorf(domain.KindEmbeddingFailure, op, "openai status=%d body=%s", resp.StatusCode, truncate(raw))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return domain.E(domain.KindEmbeddingFailure, op, err)
		}
		return nil
	}
	return domain.E(domain.KindEmbeddingFailure, op, lastErr)
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
