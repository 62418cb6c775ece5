// Package api exposes the simulation lifecycle endpoints and thin CRUD
// passthroughs to the persistence store over gin, following the teacher's
// internal/api/server.go router and CORS setup.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/lifecycle"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/simerr"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/store"
)

// Server is the HTTP API surface in front of the lifecycle manager and
// persistence store.
type Server struct {
	router  *gin.Engine
	repo    *store.Repository
	mgr     *lifecycle.Manager
	address string
}

// NewServer wires the router: lifecycle endpoints plus CRUD passthroughs
// for the entities the store owns. address is a full net/http listen
// address (e.g. ":8080"), as produced by config.Config.ServerAddress.
func NewServer(repo *store.Repository, mgr *lifecycle.Manager, address string) *Server {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{router: router, repo: repo, mgr: mgr, address: address}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")

	v1.POST("/simulations", s.startSimulation)
	v1.DELETE("/simulations/:id", s.stopSimulation)
	v1.GET("/simulations/:id", s.getStatus)

	v1.GET("/projects", s.listProjects)
	v1.POST("/projects", s.createProject)

	v1.GET("/machine-models", s.listMachineModels)
	v1.POST("/machine-models", s.createMachineModel)

	v1.POST("/components", s.createComponent)
	v1.DELETE("/components/:id", s.deleteComponent)

	v1.POST("/connections", s.createConnection)
	v1.DELETE("/connections/:id", s.deleteConnection)

	v1.POST("/communication-bindings", s.createBinding)
	v1.DELETE("/communication-bindings/:id", s.deleteBinding)

	v1.GET("/health", s.healthCheck)
}

// Start runs the HTTP server, blocking.
func (s *Server) Start() error {
	return s.router.Run(s.address)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// --- Lifecycle endpoints (spec.md §6) ---

type startSimulationRequest struct {
	ModelID uint64 `json:"model_id" binding:"required"`
	Mode    string `json:"mode"`
}

func (s *Server) startSimulation(c *gin.Context) {
	var req startSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := model.ModePure
	if req.Mode != "" {
		mode = model.Mode(req.Mode)
	}
	if !mode.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode: " + req.Mode})
		return
	}

	id, err := s.mgr.Start(c.Request.Context(), req.ModelID, mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"simulation_id": id,
			"model_id":      req.ModelID,
			"status":        lifecycle.StatusError,
			"message":       err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"simulation_id": id,
		"model_id":      req.ModelID,
		"status":        lifecycle.StatusRunning,
	})
}

func (s *Server) stopSimulation(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accepted, err := s.mgr.Stop(id)
	if err != nil {
		if simerr.Is(err, simerr.KindLifecycle) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !accepted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "simulation is not stoppable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stop accepted"})
}

func (s *Server) getStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, ok := s.mgr.Status(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown simulation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"simulation_id": view.SimulationID,
		"status":        view.Status,
		"details": gin.H{
			"machine_model_id": view.ModelID,
			"start_time":       view.StartTime,
			"error":            view.Error,
			"component_states": view.ComponentStates,
		},
	})
}

// --- CRUD passthroughs (spec.md, SPEC_FULL §6) ---

func (s *Server) listProjects(c *gin.Context) {
	rows, err := s.repo.ListProjects()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) createProject(c *gin.Context) {
	var row store.ProjectRecord
	if err := c.ShouldBindJSON(&row); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.CreateProject(&row); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (s *Server) listMachineModels(c *gin.Context) {
	rows, err := s.repo.ListMachineModels(c.Query("project_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) createMachineModel(c *gin.Context) {
	var row store.MachineModelRecord
	if err := c.ShouldBindJSON(&row); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.CreateMachineModel(&row); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, row)
}

type componentRequest struct {
	MachineModelID string                  `json:"machine_model_id" binding:"required"`
	Name           string                  `json:"name"`
	Kind           string                  `json:"kind"`
	Config         map[string]model.Value `json:"config"`
}

func (s *Server) createComponent(c *gin.Context) {
	var req componentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.repo.CreateComponent(req.MachineModelID, model.Component{
		Name: req.Name, Kind: model.Kind(req.Kind), Config: req.Config,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) deleteComponent(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.DeleteComponent(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "component deleted"})
}

type connectionRequest struct {
	MachineModelID    string  `json:"machine_model_id" binding:"required"`
	SourceComponentID uint64  `json:"source_component_id"`
	TargetComponentID uint64  `json:"target_component_id"`
	SourcePort        *string `json:"source_port"`
	TargetPort        *string `json:"target_port"`
}

func (s *Server) createConnection(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.repo.CreateConnection(req.MachineModelID, model.Connection{
		SourceComponentID: req.SourceComponentID,
		TargetComponentID: req.TargetComponentID,
		SourcePort:        req.SourcePort,
		TargetPort:        req.TargetPort,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) deleteConnection(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.DeleteConnection(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "connection deleted"})
}

type bindingRequest struct {
	MachineModelID string                  `json:"machine_model_id" binding:"required"`
	ComponentID    uint64                  `json:"component_id"`
	ComponentPort  string                  `json:"component_port"`
	Direction      string                  `json:"direction"`
	Protocol       string                  `json:"protocol"`
	EndpointURL    string                  `json:"endpoint_url"`
	Address        string                  `json:"address"`
	Config         map[string]model.Value `json:"config"`
}

func (s *Server) createBinding(c *gin.Context) {
	var req bindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	direction := model.Direction(req.Direction)
	if !direction.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid direction: " + req.Direction})
		return
	}
	id, err := s.repo.CreateBinding(req.MachineModelID, model.CommunicationBinding{
		ComponentID:   req.ComponentID,
		ComponentPort: req.ComponentPort,
		Direction:     direction,
		Protocol:      req.Protocol,
		EndpointURL:   req.EndpointURL,
		Address:       req.Address,
		Config:        req.Config,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) deleteBinding(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.DeleteBinding(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "binding deleted"})
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid id: " + raw)
	}
	return id, nil
}
