package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/user/credit-sentinel/pkg/engine"
	"github.com/user/credit-sentinel/pkg/logging"
	"github.com/user/credit-sentinel/pkg/monitor"
)

// MaxUploadSize is the largest accepted agreement or financials upload
const MaxUploadSize = 50 << 20

// Handler serves the HTTP API on top of the engine and the monitor service
type Handler struct {
	service    *monitor.Service
	extractor  engine.Extractor
	calculator *engine.Calculator
	log        *zap.Logger
}

func NewHandler(service *monitor.Service, extractor engine.Extractor, calculator *engine.Calculator, log *zap.Logger) *Handler {
	return &Handler{
		service:    service,
		extractor:  extractor,
		calculator: calculator,
		log:        logging.OrNop(log),
	}
}

// RegisterRoutes registers the API routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/extract", h.Extract)
		v1.POST("/ratios", h.Ratios)
		v1.POST("/evaluate", h.Evaluate)
	}

	loans := v1.Group("/loans/:id")
	{
		loans.POST("/agreement", h.UploadAgreement)
		loans.POST("/financials", h.UploadFinancials)
		loans.GET("/covenants", h.GetCovenants)
		loans.PUT("/covenants", h.PutCovenants)
		loans.GET("/report", h.GetReport)
		loans.GET("/reports", h.ListReports)
		loans.GET("/diff", h.GetDiff)
	}
}

// NewRouter builds a gin engine with recovery, request logging and the API routes
func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(h.log))
	router.MaxMultipartMemory = MaxUploadSize
	h.RegisterRoutes(router)
	return router
}
