package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assetflow/backend/internal/application/services"
	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/errors"
)

// WorkflowHandler handles workflow definition API endpoints
type WorkflowHandler struct {
	svc *services.DefinitionService
}

// NewWorkflowHandler creates a new WorkflowHandler
func NewWorkflowHandler(svc *services.DefinitionService) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// DefinitionRequest represents a create/update request for a workflow definition
type DefinitionRequest struct {
	Name          string                `json:"name" binding:"required"`
	Code          string                `json:"code" binding:"required"`
	ObjectAPIName string                `json:"object_api_name" binding:"required"`
	Description   string                `json:"description"`
	Graph         models.Graph          `json:"graph" binding:"required"`
	Variables     []models.VariableDecl `json:"variables"`
}

func (r DefinitionRequest) toService() services.DefinitionRequest {
	return services.DefinitionRequest{
		Name:          r.Name,
		Code:          r.Code,
		ObjectAPIName: r.ObjectAPIName,
		Description:   r.Description,
		Graph:         r.Graph,
		Variables:     r.Variables,
	}
}

// List handles GET /api/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svc.List(c.Request.Context())
	})
}

// Get handles GET /api/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), id)
	})
}

// GetGraph handles GET /api/workflows/:id/graph. Returns just the graph
// payload for the designer canvas.
func (h *WorkflowHandler) GetGraph(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		def, err := h.svc.Get(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return def.Graph, nil
	})
}

// Create handles POST /api/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)

	var req DefinitionRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleCreateEnvelope(c, "data", "Workflow definition created", func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), req.toService(), user)
	})
}

// Update handles PATCH /api/workflows/:id
// Updating an active definition produces a new draft version.
func (h *WorkflowHandler) Update(c *gin.Context) {
	user := GetUserFromContext(c)
	id := c.Param("id")

	var req DefinitionRequest
	if !BindJSON(c, &req) {
		return
	}

	HandleUpdateEnvelope(c, "data", "Workflow definition updated", func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), id, req.toService(), user)
	})
}

// Validate handles POST /api/workflows/validate, a dry-run graph validation
// for the definition designer.
func (h *WorkflowHandler) Validate(c *gin.Context) {
	var req DefinitionRequest
	if !BindJSON(c, &req) {
		return
	}

	if err := h.svc.Validate(req.toService()); err != nil {
		if errors.IsValidation(err) {
			// Designer dry-run: an invalid graph is a 200 with details, not a 400
			c.JSON(http.StatusOK, gin.H{
				"data": gin.H{"valid": false, "error": err.Error()},
			})
			return
		}
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": true}})
}

// Activate handles POST /api/workflows/:id/activate
func (h *WorkflowHandler) Activate(c *gin.Context) {
	user := GetUserFromContext(c)
	id := c.Param("id")

	HandleUpdateEnvelope(c, "data", "Workflow definition activated", func() (interface{}, error) {
		return h.svc.Activate(c.Request.Context(), id, user)
	})
}

// Deactivate handles POST /api/workflows/:id/deactivate
func (h *WorkflowHandler) Deactivate(c *gin.Context) {
	user := GetUserFromContext(c)
	id := c.Param("id")

	HandleUpdateEnvelope(c, "data", "Workflow definition deactivated", func() (interface{}, error) {
		return h.svc.Deactivate(c.Request.Context(), id, user)
	})
}

// CheckObject handles GET /api/workflows/check/:objectApiName. Tells the
// client whether submitting this object kind would find an active definition.
func (h *WorkflowHandler) CheckObject(c *gin.Context) {
	objectAPIName := c.Param("objectApiName")

	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		def, err := h.svc.ActiveDefinitionForObject(c.Request.Context(), objectAPIName)
		if err != nil {
			if errors.IsNotFound(err) {
				return gin.H{"has_workflow": false, "workflow_name": ""}, nil
			}
			return nil, err
		}
		return gin.H{"has_workflow": true, "workflow_name": def.Name}, nil
	})
}
