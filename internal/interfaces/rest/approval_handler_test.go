package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/assetflow/backend/internal/application/services"
	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/internal/interfaces/rest"
	"github.com/assetflow/backend/pkg/auth"
	"github.com/assetflow/backend/pkg/constants"
	"github.com/assetflow/backend/pkg/errors"
)

// MockApprovalService is a mock implementation of the ApprovalService
type MockApprovalService struct {
	mock.Mock
}

func (m *MockApprovalService) Decide(ctx context.Context, req services.DecideRequest, user *models.UserSession) (*models.WorkflowTask, error) {
	args := m.Called(ctx, req, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkflowTask), args.Error(1)
}

func (m *MockApprovalService) ListPending(ctx context.Context, user *models.UserSession, limit, offset int) ([]*models.WorkflowTask, error) {
	args := m.Called(ctx, user, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WorkflowTask), args.Error(1)
}

func (m *MockApprovalService) GetTask(ctx context.Context, taskID string, user *models.UserSession) (*models.WorkflowTask, error) {
	args := m.Called(ctx, taskID, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkflowTask), args.Error(1)
}

func decisionContext(t *testing.T, taskID string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	authUser := auth.UserSession{ID: "bob", Name: "Bob", Email: "bob@example.com"}
	c.Set(constants.ContextKeyUser, authUser)
	c.Params = gin.Params{{Key: "taskId", Value: taskID}}

	jsonBytes, _ := json.Marshal(body)
	c.Request = httptest.NewRequest("POST", "/approvals/"+taskID+"/approve", bytes.NewBuffer(jsonBytes))
	return w, c
}

func TestApprovalHandler_Approve(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockApprovalService)
	handler := rest.NewApprovalHandler(mockService)

	t.Run("Success", func(t *testing.T) {
		w, c := decisionContext(t, "task-1", rest.DecisionRequest{Comments: "looks good"})

		expected := &models.WorkflowTask{ID: "task-1", Status: constants.TaskStatusApproved}
		mockService.On("Decide", mock.Anything, services.DecideRequest{
			TaskID:   "task-1",
			Decision: constants.DecisionApprove,
			Comments: "looks good",
		}, mock.Anything).Return(expected, nil).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Not Assignee", func(t *testing.T) {
		w, c := decisionContext(t, "task-1", rest.DecisionRequest{})

		mockService.On("Decide", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.NewPermissionError("decide", "task-1")).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Task Not Pending", func(t *testing.T) {
		w, c := decisionContext(t, "task-1", rest.DecisionRequest{})

		mockService.On("Decide", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.NewConflictError("workflow_task", "task is Approved, not Pending")).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Task Not Found", func(t *testing.T) {
		w, c := decisionContext(t, "missing", rest.DecisionRequest{})

		mockService.On("Decide", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.NewNotFoundError("workflow_task", "missing")).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockService.AssertExpectations(t)
	})
}

func TestApprovalHandler_RejectAndReturn(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockApprovalService)
	handler := rest.NewApprovalHandler(mockService)

	t.Run("Reject", func(t *testing.T) {
		w, c := decisionContext(t, "task-2", rest.DecisionRequest{Comments: "over budget"})

		mockService.On("Decide", mock.Anything, services.DecideRequest{
			TaskID:   "task-2",
			Decision: constants.DecisionReject,
			Comments: "over budget",
		}, mock.Anything).Return(&models.WorkflowTask{ID: "task-2", Status: constants.TaskStatusRejected}, nil).Once()

		handler.Reject(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Return", func(t *testing.T) {
		w, c := decisionContext(t, "task-3", rest.DecisionRequest{Comments: "missing receipts"})

		mockService.On("Decide", mock.Anything, services.DecideRequest{
			TaskID:   "task-3",
			Decision: constants.DecisionReturn,
			Comments: "missing receipts",
		}, mock.Anything).Return(&models.WorkflowTask{ID: "task-3", Status: constants.TaskStatusReturned}, nil).Once()

		handler.Return(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})
}

func TestApprovalHandler_GetPending(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockApprovalService)
	handler := rest.NewApprovalHandler(mockService)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(constants.ContextKeyUser, auth.UserSession{ID: "bob", Name: "Bob"})
	c.Request = httptest.NewRequest("GET", "/approvals/pending?limit=5", nil)

	tasks := []*models.WorkflowTask{
		{ID: "task-1", Status: constants.TaskStatusPending, AssigneeID: "bob"},
	}
	mockService.On("ListPending", mock.Anything, mock.Anything, 5, 0).Return(tasks, nil).Once()

	handler.GetPending(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "data")
	mockService.AssertExpectations(t)
}
