package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/faceid/internal/api/handlers"
	"github.com/your-org/faceid/internal/api/ws"
	"github.com/your-org/faceid/internal/auth"
	"github.com/your-org/faceid/internal/vision"
)

type RouterConfig struct {
	APIKeys        []string
	MaxUploadBytes int64
	SearchLimit    int

	Identities handlers.IdentityStore
	Searcher   handlers.Searcher
	Events     handlers.EventStore
	// Objects and Publisher may be nil; POST /v1/probes then answers 503.
	Objects   handlers.ObjectStore
	Publisher handlers.Publisher
	Enroller  handlers.Enroller
	Matcher   handlers.Recognizer
	Extractor vision.Extractor
	Hub       *ws.Hub
	Checks    map[string]handlers.ContextPinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
		r.Use(BodyLimit(cfg.MaxUploadBytes))
	}

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/ping", systemH.Ping)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKeys))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	// Identities
	idH := handlers.NewIdentityHandler(cfg.Identities, cfg.Objects, cfg.Enroller)
	v1.POST("/register", idH.Register)
	v1.GET("/users", idH.List)
	v1.GET("/users/student/:studentId", idH.GetByStudentID)
	v1.GET("/users/userid/:id", idH.Get)
	v1.DELETE("/users/userid/:id", idH.Delete)
	v1.POST("/users/userid/:id/faces", idH.AddFace)
	v1.POST("/maintenance/backfill-timestamps", idH.BackfillTimestamps)

	// Recognition
	recH := handlers.NewRecognizeHandler(cfg.Matcher, cfg.Extractor, cfg.Searcher, cfg.Objects, cfg.Publisher, cfg.SearchLimit)
	v1.POST("/recognize", recH.Recognize)
	v1.POST("/search", recH.Search)
	v1.POST("/probes", recH.SubmitProbe)

	// Events
	eventH := handlers.NewEventHandler(cfg.Events)
	v1.GET("/events", eventH.List)

	return r
}
