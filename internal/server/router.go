package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/drivr/internal/errs"
	"github.com/loykin/drivr/internal/metrics"
	"github.com/loykin/drivr/internal/service"
)

// Router provides embeddable HTTP handlers for controlling the driver.
// Endpoints:
//   GET    {basePath}/status    recorded driver status
//   POST   {basePath}/start     start or reuse the driver
//   POST   {basePath}/stop      stop the driver and forget its record
//   GET    {basePath}/session   recorded session id
//   DELETE {basePath}/session   forget the recorded session
//   GET    /metrics             prometheus exposition
// basePath may be empty or start with '/'; no trailing slash.

// Service is the driver lifecycle as seen by the router.
type Service interface {
	Start(ctx context.Context) (service.Handle, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context) (service.Status, error)
}

// Sessions is the session record as seen by the router.
type Sessions interface {
	Read(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

type Router struct {
	svc      Service
	sessions Sessions
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/start, /api/stop, /api/status.
func NewRouter(svc Service, sessions Sessions, basePath string) *Router {
	return &Router{svc: svc, sessions: sessions, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.GET("/session", r.handleSession)
	group.DELETE("/session", r.handleClearSession)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, svc Service, sessions Sessions) (*http.Server, error) {
	r := NewRouter(svc, sessions, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second, // start waits for driver readiness
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type sessionResp struct {
	SessionID string `json:"session_id"`
	Recorded  bool   `json:"recorded"`
}

func (r *Router) handleStatus(c *gin.Context) {
	st, err := r.svc.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleStart(c *gin.Context) {
	h, err := r.svc.Start(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.svc.Stop(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleSession(c *gin.Context) {
	id, ok, err := r.sessions.Read(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResp{SessionID: id, Recorded: ok})
}

func (r *Router) handleClearSession(c *gin.Context) {
	if err := r.sessions.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func writeError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	c.JSON(statusFor(kind), errorResp{Error: err.Error(), Kind: kind.String()})
}

func statusFor(k errs.Kind) int {
	switch k {
	case errs.KindConfiguration:
		return http.StatusBadRequest
	case errs.KindLockTimeout:
		return http.StatusServiceUnavailable
	case errs.KindSessionConflict:
		return http.StatusConflict
	case errs.KindRemoteOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
