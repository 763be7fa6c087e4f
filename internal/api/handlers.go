package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"svmmapper/internal/task"
)

// StatsSource reports live run counters.
type StatsSource interface {
	Stats() task.Summary
}

type statusResponse struct {
	RunID     string `json:"run_id"`
	Uptime    string `json:"uptime"`
	Received  int    `json:"received"`
	Completed int    `json:"completed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Current   string `json:"current,omitempty"`
	LastTask  string `json:"last_task,omitempty"`
	StartedAt string `json:"started_at"`
}

// API serves read-only run status while the mapper drains its input.
type API struct {
	runID   string
	stats   StatsSource
	metrics http.Handler
}

func NewAPI(runID string, stats StatsSource, metrics http.Handler) *API {
	return &API{runID: runID, stats: stats, metrics: metrics}
}

// NewRouter returns a gin engine with recovery and request logging.
func NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ZerologLogger())
	return r
}

// RegisterRoutes registers status routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", a.Health)
	router.GET("/status", a.Status)
	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics))
	}
}

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status returns run counters and the task currently in flight
func (a *API) Status(c *gin.Context) {
	s := a.stats.Stats()
	c.JSON(http.StatusOK, statusResponse{
		RunID:     a.runID,
		Uptime:    time.Since(s.StartedAt).Round(time.Second).String(),
		Received:  s.Received,
		Completed: s.Completed,
		Skipped:   s.Skipped,
		Failed:    s.Failed,
		Current:   s.Current,
		LastTask:  s.LastTask,
		StartedAt: s.StartedAt.UTC().Format(time.RFC3339),
	})
}
