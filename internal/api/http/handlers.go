package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/shared/id"
)

// Catalog lists the packages the root loader can resolve
type Catalog interface {
	Catalog(ctx context.Context) ([]loader.Package, error)
}

// Handlers serves the admin API over an environment tree
type Handlers struct {
	tree          *app.Tree
	catalog       Catalog
	launchTimeout time.Duration
	logger        *zap.Logger
	started       time.Time
}

// NewHandlers creates admin handlers. A zero launchTimeout disables the
// per-launch deadline; a nil catalog reports no packages.
func NewHandlers(tree *app.Tree, catalog Catalog, launchTimeout time.Duration, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		tree:          tree,
		catalog:       catalog,
		launchTimeout: launchTimeout,
		logger:        logger,
		started:       time.Now(),
	}
}

// Register mounts every admin route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/packages", h.ListPackages)

	r.GET("/environments", h.ListEnvironments)
	r.GET("/environments/:id", h.GetEnvironment)
	r.POST("/environments/:id/children", h.CreateChild)
	r.POST("/environments/:id/applications", h.CreateApplication)
	r.DELETE("/environments/:id", h.DestroyEnvironment)

	r.GET("/controllers", h.ListControllers)
	r.GET("/controllers/:id", h.GetController)
	r.POST("/controllers/:id/detach", h.DetachController)
	r.DELETE("/controllers/:id", h.KillController)
}

// Root describes the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "appmgr",
		"endpoints": []string{
			"/health",
			"/metrics",
			"/packages",
			"/environments",
			"/controllers",
			"/events",
		},
	})
}

// Health reports liveness and tree size
func (h *Handlers) Health(c *gin.Context) {
	_, hasRoot := h.tree.Root()
	status := "healthy"
	code := http.StatusOK
	if !hasRoot {
		status = "starting"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":       status,
		"environments": h.tree.Len(),
		"uptime":       time.Since(h.started).Round(time.Second).String(),
	})
}

// ListPackages returns what file:// URLs the search path resolves
func (h *Handlers) ListPackages(c *gin.Context) {
	var pkgs []loader.Package
	if h.catalog != nil {
		var err error
		pkgs, err = h.catalog.Catalog(c.Request.Context())
		if err != nil {
			h.logger.Error("Failed to catalogue packages", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if pkgs == nil {
		pkgs = []loader.Package{}
	}
	c.JSON(http.StatusOK, gin.H{
		"packages": pkgs,
		"count":    len(pkgs),
	})
}

// ListEnvironments returns every live environment, parents first
func (h *Handlers) ListEnvironments(c *gin.Context) {
	envs := h.tree.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"environments": envs,
		"count":        len(envs),
	})
}

// GetEnvironment returns one environment
func (h *Handlers) GetEnvironment(c *gin.Context) {
	env, ok := h.environment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, env.Info())
}

// CreateChild nests a new environment under :id. The child resolves
// unknown services through its parent.
func (h *Handlers) CreateChild(c *gin.Context) {
	parent, ok := h.environment(c)
	if !ok {
		return
	}

	var req struct {
		Label string `json:"label" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	child := parent.CreateChainedChild(req.Label)
	if child.Destroyed() {
		c.JSON(http.StatusConflict, gin.H{"error": "parent environment destroyed"})
		return
	}

	h.logger.Info("Created environment",
		zap.String("handle", child.Handle().String()),
		zap.String("parent", parent.Handle().String()),
		zap.String("label", req.Label),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	c.JSON(http.StatusCreated, child.Info())
}

// CreateApplication launches a URL in environment :id with no control
// channel; the returned controller id drives it afterwards.
func (h *Handlers) CreateApplication(c *gin.Context) {
	env, ok := h.environment(c)
	if !ok {
		return
	}

	var req struct {
		URL       string   `json:"url" binding:"required"`
		Arguments []string `json:"arguments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if h.launchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.launchTimeout)
		defer cancel()
	}

	ctrl, ok := env.CreateApplication(ctx, process.LaunchInfo{URL: req.URL, Arguments: req.Arguments}, nil)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "failed to create application",
			"url":   req.URL,
		})
		return
	}
	c.JSON(http.StatusCreated, ctrl.Info())
}

// DestroyEnvironment tears down :id and everything beneath it. The root
// environment lives as long as the process.
func (h *Handlers) DestroyEnvironment(c *gin.Context) {
	env, ok := h.environment(c)
	if !ok {
		return
	}
	if _, hasParent := env.Parent(); !hasParent {
		c.JSON(http.StatusForbidden, gin.H{"error": "root environment cannot be destroyed"})
		return
	}

	env.Destroy()
	h.logger.Info("Destroyed environment",
		zap.String("handle", env.Handle().String()),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	c.Status(http.StatusNoContent)
}

// ListControllers returns running controllers, optionally only those in
// ?state=active or ?state=detached
func (h *Handlers) ListControllers(c *gin.Context) {
	var filter *app.State
	if raw := c.Query("state"); raw != "" {
		var state app.State
		if err := state.UnmarshalText([]byte(raw)); err != nil {
			badRequest(c, err)
			return
		}
		filter = &state
	}

	infos := []app.ControllerInfo{}
	for _, ctrl := range h.tree.Controllers() {
		info := ctrl.Info()
		if filter != nil && info.State != *filter {
			continue
		}
		infos = append(infos, info)
	}
	c.JSON(http.StatusOK, gin.H{
		"controllers": infos,
		"count":       len(infos),
	})
}

// GetController returns one running controller
func (h *Handlers) GetController(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Info())
}

// DetachController lets :id outlive its control channel
func (h *Handlers) DetachController(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.Detach()
	c.JSON(http.StatusOK, ctrl.Info())
}

// KillController terminates :id and waits for teardown
func (h *Handlers) KillController(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.Kill()
	<-ctrl.Done()
	c.JSON(http.StatusOK, gin.H{
		"id":     ctrl.ID().String(),
		"reason": ctrl.Reason(),
	})
}

func (h *Handlers) environment(c *gin.Context) (*app.Environment, bool) {
	env, ok := h.tree.ParseEnvironment(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "environment not found"})
		return nil, false
	}
	return env, true
}

func (h *Handlers) controller(c *gin.Context) (*app.Controller, bool) {
	cid, err := id.ParseControllerID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return nil, false
	}
	ctrl, ok := h.tree.FindController(cid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "controller not found"})
		return nil, false
	}
	return ctrl, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
}
