package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/ctxutil"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

// Point ids must be UUIDs; chunk ids are uuid-shaped but the mapping is kept
// deterministic rather than trusted, so re-ingest always lands on the same point.
var pointIDNamespaceUUID = uuid.MustParse("7c9e2f5a-1b44-4d6e-9a03-c2d8e4f61b27")

// ChunkStore is the vector-store DAL. One point per chunk, payload carrying
// every chunk field, cosine similarity, payload indexes on the filterable fields.
type ChunkStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

// SearchParams carries one vector query. IncludePrivate and
// IncludeTwinInteractions are always explicit; the negative case becomes an
// equality conjunct on the corresponding payload bool.
type SearchParams struct {
	Vector                  []float32
	Limit                   int
	Filters                 []domain.Filter
	IncludePrivate          bool
	IncludeTwinInteractions bool
	// ScoreThreshold is applied after the store returns; 0 disables it.
	ScoreThreshold float64
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewChunkStore(log *logger.Logger, cfg Config) (*ChunkStore, error) {
	if log == nil {
		return nil, fmt.Errorf("qdrant: logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	s := &ChunkStore{
		log:     log.With("service", "QdrantChunkStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	return s, nil
}

// EnsureCollection creates the collection and its payload indexes if they do
// not exist yet. Idempotent; safe to call on every boot.
func (s *ChunkStore) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return s.wrap(op, err)
	}
	if !exists {
		req := map[string]any{
			"vectors": map[string]any{
				"size":     s.cfg.VectorDim,
				"distance": "Cosine",
			},
		}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
			return s.wrap(op, err)
		}
		s.log.Info("vector collection created",
			"collection", s.cfg.Collection,
			"vector_dim", s.cfg.VectorDim,
		)
	}

	indexes := []struct {
		field  string
		schema string
	}{
		{domain.FieldUserID, "keyword"},
		{domain.FieldProjectID, "keyword"},
		{domain.FieldSessionID, "keyword"},
		{domain.FieldSourceType, "keyword"},
		{domain.FieldChunkID, "keyword"},
		{domain.FieldDocID, "keyword"},
		{domain.FieldIsPrivate, "bool"},
		{domain.FieldIsTwinInteraction, "bool"},
		{domain.FieldTimestampEpoch, "float"},
	}
	for _, idx := range indexes {
		req := map[string]any{
			"field_name":   idx.field,
			"field_schema": idx.schema,
		}
		err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), req, nil)
		if err != nil {
			// Re-creating an existing index is a conflict, not a failure.
			var operr *OperationError
			if errors.As(err, &operr) && operr.StatusCode == http.StatusConflict {
				continue
			}
			if errors.As(err, &operr) && operr.StatusCode == http.StatusBadRequest &&
				strings.Contains(strings.ToLower(operr.Message), "already exists") {
				continue
			}
			return s.wrap(op, err)
		}
	}
	return nil
}

func (s *ChunkStore) collectionExists(ctx context.Context) (bool, error) {
	const op = "collection_exists"
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, nil)
	if err == nil {
		return true, nil
	}
	var operr *OperationError
	if errors.As(err, &operr) && operr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// Upsert writes one chunk point. Idempotent on chunk id: the point id is a
// deterministic function of it, so a rewrite replaces the previous record.
func (s *ChunkStore) Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	const op = "upsert"
	if strings.TrimSpace(chunk.ChunkID) == "" {
		return s.wrap(op, opErr(op, OperationErrorValidation, "chunk_id is required", nil))
	}
	if err := validateVector(vector, s.cfg.VectorDim); err != nil {
		return s.wrap(op, opErr(op, OperationErrorValidation, err.Error(), nil))
	}

	point := map[string]any{
		"id":      s.pointID(chunk.ChunkID),
		"vector":  vector,
		"payload": chunk.Payload(),
	}
	req := map[string]any{"points": []map[string]any{point}}
	return s.wrap(op, s.doJSONRetry(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil))
}

// UpsertBatch writes points in the given order, one request per point so a
// later failure never reorders earlier writes (chunk_index ordering holds for
// document ingests).
func (s *ChunkStore) UpsertBatch(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	const op = "upsert_batch"
	if len(chunks) != len(vectors) {
		return s.wrap(op, opErr(op, OperationErrorValidation,
			fmt.Sprintf("chunks/vectors length mismatch: %d != %d", len(chunks), len(vectors)), nil))
	}
	for i := range chunks {
		if err := s.Upsert(ctx, chunks[i], vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChunkStore) Search(ctx context.Context, p SearchParams) ([]domain.ScoredChunk, error) {
	const op = "search"
	if err := validateVector(p.Vector, s.cfg.VectorDim); err != nil {
		return nil, s.wrap(op, opErr(op, OperationErrorValidation, err.Error(), nil))
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	filters := append([]domain.Filter{}, p.Filters...)
	filters = append(filters, visibilityConjuncts(p.IncludePrivate, p.IncludeTwinInteractions)...)
	qf, err := translateFilters(filters)
	if err != nil {
		return nil, s.wrap(op, err)
	}

	req := map[string]any{
		"vector":       p.Vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if qf != nil {
		req["filter"] = qf
	}

	var rawResults []qdrantSearchResultItem
	if err := s.doJSONRetry(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &rawResults); err != nil {
		return nil, s.wrap(op, err)
	}

	out := make([]domain.ScoredChunk, 0, len(rawResults))
	for _, item := range rawResults {
		if p.ScoreThreshold > 0 && item.Score < p.ScoreThreshold {
			continue
		}
		chunk := domain.ChunkFromPayload(item.Payload)
		if chunk.ChunkID == "" {
			continue
		}
		out = append(out, domain.ScoredChunk{Chunk: chunk, Score: item.Score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Chunk.ChunkID < out[j].Chunk.ChunkID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *ChunkStore) Count(ctx context.Context, filters []domain.Filter) (int, error) {
	const op = "count"
	qf, err := translateFilters(filters)
	if err != nil {
		return 0, s.wrap(op, err)
	}
	req := map[string]any{"exact": true}
	if qf != nil {
		req["filter"] = qf
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := s.doJSONRetry(ctx, op, http.MethodPost, s.collectionPath("/points/count"), req, &result); err != nil {
		return 0, s.wrap(op, err)
	}
	return result.Count, nil
}

func (s *ChunkStore) DeleteByIDs(ctx context.Context, chunkIDs []string) error {
	const op = "delete_ids"
	if len(chunkIDs) == 0 {
		return nil
	}
	pointIDs := make([]string, 0, len(chunkIDs))
	seen := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		pid := s.pointID(id)
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		pointIDs = append(pointIDs, pid)
	}
	if len(pointIDs) == 0 {
		return nil
	}
	req := map[string]any{"points": pointIDs}
	return s.wrap(op, s.doJSONRetry(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil))
}

// DeleteByFilter refuses an empty filter set: the only sanctioned full wipe
// is DropAll, invoked through admin ops.
func (s *ChunkStore) DeleteByFilter(ctx context.Context, filters []domain.Filter) error {
	const op = "delete_filter"
	if len(filters) == 0 {
		return s.wrap(op, opErr(op, OperationErrorValidation,
			"refusing filter delete with no conditions; use the admin wipe", nil))
	}
	qf, err := translateFilters(filters)
	if err != nil {
		return s.wrap(op, err)
	}
	req := map[string]any{"filter": qf}
	return s.wrap(op, s.doJSONRetry(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil))
}

// DropAll removes every point in the collection and reports how many were
// there. Admin-only.
func (s *ChunkStore) DropAll(ctx context.Context) (int, error) {
	const op = "drop_all"
	n, err := s.Count(ctx, nil)
	if err != nil {
		return 0, err
	}
	req := map[string]any{"filter": map[string]any{}}
	if err := s.doJSONRetry(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil); err != nil {
		return 0, s.wrap(op, err)
	}
	return n, nil
}

// wrap converts the internal operation error into the service-wide category.
func (s *ChunkStore) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var operr *OperationError
	if errors.As(err, &operr) {
		return domain.E(operr.DomainKind(), "qdrant."+op, err)
	}
	return domain.Wrap("qdrant."+op, err, domain.KindStoreTransient)
}

// doJSONRetry retries transient failures exactly once with backoff.
func (s *ChunkStore) doJSONRetry(ctx context.Context, op, method, path string, in any, out any) error {
	err := s.doJSON(ctx, op, method, path, in, out)
	if err == nil {
		return nil
	}
	var operr *OperationError
	if !errors.As(err, &operr) || operr.DomainKind() != domain.KindStoreTransient {
		return err
	}
	select {
	case <-ctxutil.Default(ctx).Done():
		return err
	case <-time.After(500 * time.Millisecond):
	}
	s.log.Warn("qdrant transient failure, retrying once", "op", op, "error", err)
	return s.doJSON(ctx, op, method, path, in, out)
}

func (s *ChunkStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") || strings.EqualFold(statusString, "completed") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (s *ChunkStore) pointID(chunkID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(chunkID)).String()
}

func (s *ChunkStore) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}

func validateVector(vec []float32, wantDim int) error {
	if len(vec) == 0 {
		return fmt.Errorf("vector is empty")
	}
	if wantDim > 0 && len(vec) != wantDim {
		return fmt.Errorf("vector dimension mismatch: expected=%d got=%d", wantDim, len(vec))
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("vector contains non-finite value")
		}
	}
	return nil
}
