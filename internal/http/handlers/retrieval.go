package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lishiyo/twincore-prototype-sub000/internal/http/response"
	"github.com/lishiyo/twincore-prototype-sub000/internal/services"
)

type RetrievalHandler struct {
	engine *services.RetrievalEngine
}

func NewRetrievalHandler(engine *services.RetrievalEngine) *RetrievalHandler {
	return &RetrievalHandler{engine: engine}
}

func queryInt(c *gin.Context, name string, def int) int {
	if v := strings.TrimSpace(c.Query(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryBoolPtr(c *gin.Context, name string) *bool {
	if v := strings.TrimSpace(c.Query(name)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return &b
		}
	}
	return nil
}

func queryFloatPtr(c *gin.Context, name string) *float64 {
	if v := strings.TrimSpace(c.Query(name)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func querySourceTypes(c *gin.Context) []string {
	raw := strings.TrimSpace(c.Query("source_types"))
	if raw == "" {
		return nil
	}
	var out []string
	for _, st := range strings.Split(raw, ",") {
		if st = strings.TrimSpace(st); st != "" {
			out = append(out, st)
		}
	}
	return out
}

func contextQueryFromRequest(c *gin.Context) services.ContextQuery {
	includeGraph := false
	if p := queryBoolPtr(c, "include_graph"); p != nil {
		includeGraph = *p
	}
	return services.ContextQuery{
		Query:          c.Query("query"),
		UserID:         c.Query("user_id"),
		ProjectID:      c.Query("project_id"),
		SessionID:      c.Query("session_id"),
		DocID:          c.Query("doc_id"),
		SourceTypes:    querySourceTypes(c),
		Limit:          queryInt(c, "limit", 0),
		IncludePrivate: queryBoolPtr(c, "include_private"),
		IncludeTwin:    queryBoolPtr(c, "include_twin"),
		IncludeGraph:   includeGraph,
		ScoreThreshold: queryFloatPtr(c, "score_threshold"),
	}
}

// GET /v1/retrieve/context
func (h *RetrievalHandler) RetrieveContext(c *gin.Context) {
	result, err := h.engine.RetrieveContext(c.Request.Context(), contextQueryFromRequest(c))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /v1/users/:user_id/context
func (h *RetrievalHandler) RetrieveUserContext(c *gin.Context) {
	q := contextQueryFromRequest(c)
	result, err := h.engine.RetrieveUserContext(c.Request.Context(), c.Param("user_id"), q)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type privateMemoryReq struct {
	Query          string   `json:"query"`
	UserID         string   `json:"user_id"`
	ProjectID      string   `json:"project_id"`
	SessionID      string   `json:"session_id"`
	Limit          int      `json:"limit"`
	IncludeTwin    *bool    `json:"include_twin"`
	ScoreThreshold *float64 `json:"score_threshold"`
}

// POST /v1/users/:user_id/private_memory
func (h *RetrievalHandler) RetrievePrivateMemory(c *gin.Context) {
	var req privateMemoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, 400, "invalid_request", err)
		return
	}
	userID := c.Param("user_id")
	if userID == "" {
		userID = req.UserID
	}
	result, err := h.engine.RetrievePrivateMemory(c.Request.Context(), userID, services.ContextQuery{
		Query:          req.Query,
		ProjectID:      req.ProjectID,
		SessionID:      req.SessionID,
		Limit:          req.Limit,
		IncludeTwin:    req.IncludeTwin,
		ScoreThreshold: req.ScoreThreshold,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// POST /v1/retrieve/private_memory
//
// Legacy alias kept for old callers; the user-scoped route is canonical and
// this one requires user_id in the body instead of the path.
func (h *RetrievalHandler) RetrievePrivateMemoryLegacy(c *gin.Context) {
	h.RetrievePrivateMemory(c)
}

// GET /v1/retrieve/group
func (h *RetrievalHandler) RetrieveGroupContext(c *gin.Context) {
	result, err := h.engine.RetrieveGroupContext(c.Request.Context(), services.GroupQuery{
		Query:          c.Query("query"),
		SessionID:      c.Query("session_id"),
		ProjectID:      c.Query("project_id"),
		TeamID:         c.Query("team_id"),
		LimitPerUser:   queryInt(c, "limit_per_user", 0),
		IncludePrivate: queryBoolPtr(c, "include_private"),
		IncludeTwin:    queryBoolPtr(c, "include_twin"),
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /v1/retrieve/related_content
func (h *RetrievalHandler) RetrieveRelated(c *gin.Context) {
	var types []string
	if raw := strings.TrimSpace(c.Query("types")); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	includePrivate := false
	if p := queryBoolPtr(c, "include_private"); p != nil {
		includePrivate = *p
	}
	related, err := h.engine.RetrieveRelated(c.Request.Context(), services.RelatedQuery{
		ChunkID:        c.Query("chunk_id"),
		Types:          types,
		Depth:          queryInt(c, "depth", 1),
		IncludePrivate: includePrivate,
		Limit:          queryInt(c, "limit", 0),
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"related": related, "total": len(related)})
}

// GET /v1/retrieve/topic
func (h *RetrievalHandler) RetrieveByTopic(c *gin.Context) {
	result, err := h.engine.RetrieveByTopic(c.Request.Context(), c.Query("topic"), services.TopicQuery{
		UserID:         c.Query("user_id"),
		ProjectID:      c.Query("project_id"),
		SessionID:      c.Query("session_id"),
		Limit:          queryInt(c, "limit", 0),
		IncludePrivate: queryBoolPtr(c, "include_private"),
		IncludeTwin:    queryBoolPtr(c, "include_twin"),
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}
