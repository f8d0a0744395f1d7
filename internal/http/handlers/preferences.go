package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lishiyo/twincore-prototype-sub000/internal/http/response"
	"github.com/lishiyo/twincore-prototype-sub000/internal/services"
)

type PreferenceHandler struct {
	resolver *services.PreferenceResolver
}

func NewPreferenceHandler(resolver *services.PreferenceResolver) *PreferenceHandler {
	return &PreferenceHandler{resolver: resolver}
}

// GET /v1/users/:user_id/preferences?decision_topic=...
func (h *PreferenceHandler) Resolve(c *gin.Context) {
	includeTwin := false
	if p := queryBoolPtr(c, "include_twin"); p != nil {
		includeTwin = *p
	}
	result, err := h.resolver.Resolve(c.Request.Context(), services.PreferenceQuery{
		UserID:         c.Param("user_id"),
		DecisionTopic:  c.Query("decision_topic"),
		ProjectID:      c.Query("project_id"),
		SessionID:      c.Query("session_id"),
		Limit:          queryInt(c, "limit", 0),
		IncludeTwin:    includeTwin,
		ScoreThreshold: queryFloatPtr(c, "score_threshold"),
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}
