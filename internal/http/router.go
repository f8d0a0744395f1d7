package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/lishiyo/twincore-prototype-sub000/internal/http/handlers"
	httpMW "github.com/lishiyo/twincore-prototype-sub000/internal/http/middleware"
)

type RouterConfig struct {
	ServiceName string

	IngestHandler     *httpH.IngestHandler
	RetrievalHandler  *httpH.RetrievalHandler
	PreferenceHandler *httpH.PreferenceHandler
	AdminHandler      *httpH.AdminHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())
	r.Use(httpMW.AttachTraceContext())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	v1 := r.Group("/v1")
	{
		if cfg.IngestHandler != nil {
			v1.POST("/ingest/message", cfg.IngestHandler.IngestMessage)
			v1.POST("/ingest/document", cfg.IngestHandler.IngestDocument)
			v1.POST("/ingest/chunk", cfg.IngestHandler.IngestChunk)
			v1.POST("/documents/:doc_id/metadata", cfg.IngestHandler.UpdateDocumentMetadata)
		}

		if cfg.RetrievalHandler != nil {
			v1.GET("/retrieve/context", cfg.RetrievalHandler.RetrieveContext)
			v1.GET("/retrieve/related_content", cfg.RetrievalHandler.RetrieveRelated)
			v1.GET("/retrieve/topic", cfg.RetrievalHandler.RetrieveByTopic)
			v1.GET("/retrieve/group", cfg.RetrievalHandler.RetrieveGroupContext)
			v1.POST("/retrieve/private_memory", cfg.RetrievalHandler.RetrievePrivateMemoryLegacy)

			v1.GET("/users/:user_id/context", cfg.RetrievalHandler.RetrieveUserContext)
			v1.POST("/users/:user_id/private_memory", cfg.RetrievalHandler.RetrievePrivateMemory)
		}

		if cfg.PreferenceHandler != nil {
			v1.GET("/users/:user_id/preferences", cfg.PreferenceHandler.Resolve)
		}

		if cfg.AdminHandler != nil {
			admin := v1.Group("/admin/api")
			admin.POST("/seed_data", cfg.AdminHandler.SeedData)
			admin.DELETE("/clear_data", cfg.AdminHandler.ClearData)
			admin.POST("/init_schema", cfg.AdminHandler.InitSchema)
		}
	}

	return r
}
