package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assetflow/backend/internal/application/services"
	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
)

// ApprovalService defines the interface for approval decisions
type ApprovalService interface {
	Decide(ctx context.Context, req services.DecideRequest, user *models.UserSession) (*models.WorkflowTask, error)
	ListPending(ctx context.Context, user *models.UserSession, limit, offset int) ([]*models.WorkflowTask, error)
	GetTask(ctx context.Context, taskID string, user *models.UserSession) (*models.WorkflowTask, error)
}

// ApprovalHandler handles approval task API endpoints
type ApprovalHandler struct {
	svc ApprovalService
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(svc ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// DecisionRequest represents an approve/reject/return request body
type DecisionRequest struct {
	Comments string `json:"comments"`
}

// GetPending handles GET /api/approvals/pending
func (h *ApprovalHandler) GetPending(c *gin.Context) {
	user := GetUserFromContext(c)
	limit := queryInt(c, "limit", constants.DefaultPageSize)
	offset := queryInt(c, "offset", 0)

	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svc.ListPending(c.Request.Context(), user, limit, offset)
	})
}

// GetTask handles GET /api/approvals/:taskId
func (h *ApprovalHandler) GetTask(c *gin.Context) {
	user := GetUserFromContext(c)
	taskID := c.Param("taskId")

	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svc.GetTask(c.Request.Context(), taskID, user)
	})
}

// Approve handles POST /api/approvals/:taskId/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, constants.DecisionApprove, "Approval granted")
}

// Reject handles POST /api/approvals/:taskId/reject
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, constants.DecisionReject, "Request rejected")
}

// Return handles POST /api/approvals/:taskId/return
func (h *ApprovalHandler) Return(c *gin.Context) {
	h.decide(c, constants.DecisionReturn, "Request returned for rework")
}

func (h *ApprovalHandler) decide(c *gin.Context, decision, successMsg string) {
	taskID := c.Param("taskId")
	user := GetUserFromContext(c)

	var req DecisionRequest
	_ = c.ShouldBindJSON(&req) // Optional comments

	task, err := h.svc.Decide(c.Request.Context(), services.DecideRequest{
		TaskID:   taskID,
		Decision: decision,
		Comments: req.Comments,
	}, user)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"success":              true,
			constants.FieldMessage: successMsg,
			"task":                 task,
		},
	})
}
