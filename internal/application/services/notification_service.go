package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/internal/domain/ports"
	"github.com/assetflow/backend/pkg/errors"
	"github.com/assetflow/backend/pkg/utils"
)

// FeedSummary is the polling payload worklist badges render.
type FeedSummary struct {
	PendingCount int                `json:"pending_count"`
	RecentTasks  []*models.TaskView `json:"recent_tasks"`
}

// NotificationService is the read side of the task feed plus the sink for
// engine events. Pending counts are cached per user; the cache drops a user's
// entry whenever a task is created for them and expires wholesale on a cron
// schedule, so a stale badge self-heals within a minute.
type NotificationService struct {
	tasks         ports.TaskRepository
	instances     ports.InstanceRepository
	notifications ports.NotificationRepository

	mu         sync.RWMutex
	countCache map[string]int

	cron *cron.Cron
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	tasks ports.TaskRepository,
	instances ports.InstanceRepository,
	notifications ports.NotificationRepository,
) *NotificationService {
	return &NotificationService{
		tasks:         tasks,
		instances:     instances,
		notifications: notifications,
		countCache:    make(map[string]int),
	}
}

// StartRefresh begins the periodic cache flush. Call Stop on shutdown.
func (s *NotificationService) StartRefresh() error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", s.flushCounts); err != nil {
		return fmt.Errorf("failed to schedule feed refresh: %w", err)
	}
	c.Start()
	s.cron = c
	log.Printf("✅ Notification feed refresh scheduled (every 1m)")
	return nil
}

// Stop halts the refresh schedule and waits for a running flush to finish.
func (s *NotificationService) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
}

// PendingCountFor returns the user's pending task count, served from cache
// when warm.
func (s *NotificationService) PendingCountFor(ctx context.Context, user *models.UserSession) (int, error) {
	s.mu.RLock()
	count, ok := s.countCache[user.ID]
	s.mu.RUnlock()
	if ok {
		return count, nil
	}

	count, err := s.tasks.CountPendingForAssignee(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.countCache[user.ID] = count
	s.mu.Unlock()
	return count, nil
}

// RecentPendingTasks returns the user's newest pending tasks joined with
// their instance context.
func (s *NotificationService) RecentPendingTasks(ctx context.Context, user *models.UserSession, limit int) ([]*models.TaskView, error) {
	tasks, err := s.tasks.ListPendingForAssignee(ctx, user.ID, limit, 0)
	if err != nil {
		return nil, err
	}

	views := make([]*models.TaskView, 0, len(tasks))
	for _, t := range tasks {
		view := &models.TaskView{
			ID:          t.ID,
			InstanceID:  t.InstanceID,
			NodeName:    t.NodeName,
			CreatedDate: t.CreatedDate,
		}
		inst, err := s.instances.GetByID(ctx, t.InstanceID)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			view.ObjectAPIName = inst.ObjectAPIName
			view.RecordID = inst.RecordID
			view.InitiatorID = inst.InitiatorID
		}
		views = append(views, view)
	}
	return views, nil
}

// Summary bundles the count and recent tasks into one polling response.
func (s *NotificationService) Summary(ctx context.Context, user *models.UserSession, limit int) (*FeedSummary, error) {
	count, err := s.PendingCountFor(ctx, user)
	if err != nil {
		return nil, err
	}
	recent, err := s.RecentPendingTasks(ctx, user, limit)
	if err != nil {
		return nil, err
	}
	return &FeedSummary{PendingCount: count, RecentTasks: recent}, nil
}

// ListNotifications returns a user's persisted notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, user *models.UserSession, limit int) ([]*models.SystemNotification, error) {
	return s.notifications.ListForRecipient(ctx, user.ID, limit)
}

// MarkRead flags one of the user's notifications as read. Someone else's
// notification reads as not found rather than forbidden; ids are not probeable.
func (s *NotificationService) MarkRead(ctx context.Context, id string, user *models.UserSession) error {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil || n.RecipientID != user.ID {
		return errors.NewNotFoundError("notification", id)
	}
	return s.notifications.MarkRead(ctx, id)
}

// TaskCreated implements ports.TaskNotifier: persist a notification for the
// assignee and invalidate their cached count.
func (s *NotificationService) TaskCreated(ctx context.Context, task *models.WorkflowTask, instance *models.WorkflowInstance) error {
	s.mu.Lock()
	delete(s.countCache, task.AssigneeID)
	s.mu.Unlock()

	return s.notifications.Insert(ctx, &models.SystemNotification{
		ID:          utils.GenerateID(),
		RecipientID: task.AssigneeID,
		Title:       fmt.Sprintf("Approval needed: %s", task.NodeName),
		Body:        fmt.Sprintf("%s/%s awaits your decision", instance.ObjectAPIName, instance.RecordID),
		Link:        fmt.Sprintf("/approvals/%s", task.ID),
	})
}

// Message implements ports.TaskNotifier for notify-node messages.
func (s *NotificationService) Message(ctx context.Context, recipientID, title, body string) error {
	return s.notifications.Insert(ctx, &models.SystemNotification{
		ID:          utils.GenerateID(),
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
	})
}

func (s *NotificationService) flushCounts() {
	s.mu.Lock()
	s.countCache = make(map[string]int)
	s.mu.Unlock()
}
