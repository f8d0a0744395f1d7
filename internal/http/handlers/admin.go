package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lishiyo/twincore-prototype-sub000/internal/http/response"
	"github.com/lishiyo/twincore-prototype-sub000/internal/services"
)

type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type seedReq struct {
	Records []services.SeedRecord `json:"records"`
}

// POST /v1/admin/api/seed_data
func (h *AdminHandler) SeedData(c *gin.Context) {
	var req seedReq
	// An empty body means the built-in demo corpus.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, 400, "invalid_request", err)
			return
		}
	}
	summary, err := h.admin.Seed(c.Request.Context(), req.Records)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "seeded", "summary": summary})
}

// DELETE /v1/admin/api/clear_data
func (h *AdminHandler) ClearData(c *gin.Context) {
	summary, err := h.admin.ClearAll(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "cleared", "summary": summary})
}

// POST /v1/admin/api/init_schema
func (h *AdminHandler) InitSchema(c *gin.Context) {
	if err := h.admin.InitializeSchema(c.Request.Context()); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "initialized"})
}
