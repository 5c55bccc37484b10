package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assetflow/backend/internal/application/services"
	"github.com/assetflow/backend/pkg/constants"
)

// InstanceHandler handles workflow instance API endpoints
type InstanceHandler struct {
	engine *services.InstanceEngine
}

// NewInstanceHandler creates a new InstanceHandler
func NewInstanceHandler(engine *services.InstanceEngine) *InstanceHandler {
	return &InstanceHandler{engine: engine}
}

// StartRequest represents a request to start a workflow instance for a record
type StartRequest struct {
	DefinitionID  string                 `json:"definition_id"`
	ObjectAPIName string                 `json:"object_api_name" binding:"required"`
	RecordID      string                 `json:"record_id" binding:"required"`
	Variables     map[string]interface{} `json:"variables"`
}

// Start handles POST /api/instances
func (h *InstanceHandler) Start(c *gin.Context) {
	user := GetUserFromContext(c)

	var req StartRequest
	if !BindJSON(c, &req) {
		return
	}

	inst, err := h.engine.Start(c.Request.Context(), services.StartInstanceRequest{
		DefinitionID:  req.DefinitionID,
		ObjectAPIName: req.ObjectAPIName,
		RecordID:      req.RecordID,
		Variables:     req.Variables,
	}, user)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	// A halted instance is still created; surface the state so the client
	// can show the failure instead of a pending badge.
	c.JSON(http.StatusCreated, gin.H{
		constants.FieldMessage: "Workflow instance started",
		"data":                 inst,
	})
}

// Get handles GET /api/instances/:id and returns the raw instance record
func (h *InstanceHandler) Get(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.engine.GetInstance(c.Request.Context(), id)
	})
}

// GetProgress handles GET /api/instances/:id/progress. The response joins the
// instance with its task history for the timeline view.
func (h *InstanceHandler) GetProgress(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.engine.GetInstanceView(c.Request.Context(), id)
	})
}

// Cancel handles POST /api/instances/:id/cancel
func (h *InstanceHandler) Cancel(c *gin.Context) {
	user := GetUserFromContext(c)
	id := c.Param("id")

	if err := h.engine.Cancel(c.Request.Context(), id, user); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Workflow instance cancelled"})
}
