package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/linkfinder/internal/apierr"
	"github.com/rawblock/linkfinder/internal/model"
	"github.com/rawblock/linkfinder/internal/risk"
	"github.com/rawblock/linkfinder/internal/session"
	"github.com/rawblock/linkfinder/pkg/models"
)

// APIHandler is the Control Plane (C11): a thin HTTP/JSON translation over
// the Session Manager. It holds no traversal state of its own beyond the
// shared watchlist, which also feeds the Transaction Filter.
type APIHandler struct {
	mgr       *session.Manager
	wsHub     *Hub
	watchlist *risk.Watchlist
}

// SetupRouter wires every Control Plane operation onto a gin.Engine.
func SetupRouter(mgr *session.Manager, wsHub *Hub, watchlist *risk.Watchlist) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{mgr: mgr, wsHub: wsHub, watchlist: watchlist}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiter(60, 10).Middleware())
	{
		sessions := auth.Group("/sessions")
		{
			sessions.POST("", handler.handleStart)
			sessions.GET("", handler.handleList)
			sessions.GET("/:id", handler.handleStatus)
			sessions.GET("/:id/results", handler.handleResults)
			sessions.DELETE("/:id", handler.handleDelete)
			sessions.POST("/:id/cancel", handler.handleCancel)
			sessions.POST("/:id/checkpoint", handler.handleForceCheckpoint)
			sessions.POST("/:id/resume", handler.handleResumeSession)
			sessions.GET("/:id/checkpoints", handler.handleListCheckpoints)
			sessions.DELETE("/:id/checkpoints/:checkpointId", handler.handleDeleteCheckpoint)
			sessions.POST("/:id/checkpoints/cleanup", handler.handleCleanupCheckpoints)
		}

		resume := auth.Group("/resume")
		{
			resume.POST("", handler.handleResume)
			resume.POST("/auto", handler.handleResumeAuto)
		}

		watchlist := auth.Group("/watchlist")
		{
			watchlist.GET("", handler.handleListWatchlist)
			watchlist.POST("", handler.handleAddToWatchlist)
			watchlist.DELETE("/:address", handler.handleRemoveFromWatchlist)
		}
	}

	return r
}

func (h *APIHandler) handleListWatchlist(c *gin.Context) {
	c.JSON(http.StatusOK, h.watchlist.ListAll())
}

func (h *APIHandler) handleAddToWatchlist(c *gin.Context) {
	var req models.WatchlistEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.BadRequestf("invalid watchlist entry: %v", err))
		return
	}
	h.watchlist.Add(req.Address, req.Category, req.Label, req.CaseID)
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) handleRemoveFromWatchlist(c *gin.Context) {
	h.watchlist.Remove(c.Param("address"))
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *APIHandler) handleStart(c *gin.Context) {
	var req models.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	sessionID, err := h.mgr.Start(c.Request.Context(), model.Request{
		SeedsA:   req.SeedsA,
		SeedsB:   req.SeedsB,
		MaxDepth: req.MaxDepth,
		UserBlockRange: model.BlockRange{
			Lo: req.BlockLo,
			Hi: req.BlockHi,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, models.StartResponse{SessionID: sessionID})
}

func (h *APIHandler) handleList(c *gin.Context) {
	sessions := h.mgr.List()
	out := make([]models.SessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, h.toSessionDTO(s))
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) handleStatus(c *gin.Context) {
	s, err := h.mgr.Status(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toSessionDTO(s))
}

func (h *APIHandler) handleResults(c *gin.Context) {
	s, err := h.mgr.Results(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toSessionDTO(s))
}

func (h *APIHandler) handleDelete(c *gin.Context) {
	if err := h.mgr.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) handleCancel(c *gin.Context) {
	if err := h.mgr.Cancel(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) handleForceCheckpoint(c *gin.Context) {
	cpID, summary, err := h.mgr.ForceCheckpoint(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpointId": cpID, "progressSummary": summary})
}

func (h *APIHandler) handleResumeSession(c *gin.Context) {
	newID, err := h.mgr.ResumeSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, models.StartResponse{SessionID: newID})
}

func (h *APIHandler) handleResume(c *gin.Context) {
	var req models.ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	newID, err := h.mgr.Resume(req.SessionID, req.CheckpointID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, models.StartResponse{SessionID: newID})
}

func (h *APIHandler) handleResumeAuto(c *gin.Context) {
	newID, err := h.mgr.ResumeAuto()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, models.StartResponse{SessionID: newID})
}

func (h *APIHandler) handleListCheckpoints(c *gin.Context) {
	cps, err := h.mgr.ListCheckpoints(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]models.CheckpointDTO, 0, len(cps))
	for _, cp := range cps {
		out = append(out, models.CheckpointDTO{
			SessionID:       cp.SessionID,
			CheckpointID:    cp.CheckpointID,
			CreatedAt:       cp.CreatedAt,
			Reason:          cp.Reason,
			ProgressSummary: cp.ProgressSummary,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) handleDeleteCheckpoint(c *gin.Context) {
	if err := h.mgr.DeleteCheckpoint(c.Param("id"), c.Param("checkpointId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) handleCleanupCheckpoints(c *gin.Context) {
	n, err := h.mgr.CleanupCheckpoints(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// toSessionDTO translates a Session into its wire shape, scoring each
// connection's path against the watchlist-seeded taint map so a caller can
// see at a glance which links pass through a known mixer or suspect address.
func (h *APIHandler) toSessionDTO(s model.Session) models.SessionDTO {
	taint := risk.SeedFromWatchlist(h.watchlist)

	conns := make([]models.ConnectionDTO, 0, len(s.TraceState.ConnectionsFound))
	for _, conn := range s.TraceState.ConnectionsFound {
		r := risk.AssessPath(taint, conn.Path)
		conns = append(conns, models.ConnectionDTO{
			Source:       conn.Source,
			Target:       conn.Target,
			Path:         conn.Path,
			PathLength:   conn.PathLength,
			DiscoveredAt: conn.DiscoveredAt,
			RiskScore:    r.RiskScore,
			RiskLevel:    r.RiskLevel,
		})
	}

	dto := models.SessionDTO{
		SessionID:        s.SessionID,
		Status:           s.Status,
		SearchDepth:      s.TraceState.SearchDepth,
		ConnectionsFound: conns,
		EffectiveBlockLo: s.EffectiveBlockRange.Lo,
		EffectiveBlockHi: s.EffectiveBlockRange.Hi,
		StartedAt:        s.StartedAt,
		CheckpointID:     s.CheckpointID,
		Error:            s.Error,
	}
	if !s.LastCheckpointTime.IsZero() {
		t := s.LastCheckpointTime
		dto.LastCheckpointTime = &t
	}
	return dto
}

func respondError(c *gin.Context, err error) {
	kind := apierr.KindOf(err)
	c.JSON(apierr.HTTPStatus(kind), models.ErrorResponse{Error: err.Error()})
}
