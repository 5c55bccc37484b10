package services

import (
	"github.com/assetflow/backend/internal/infrastructure/database"
	"github.com/assetflow/backend/internal/infrastructure/persistence"
	"github.com/assetflow/backend/pkg/expression"
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db *database.TiDBConnection

	TxManager    *persistence.TransactionManager
	Auth         *AuthService
	Definitions  *DefinitionService
	Engine       *InstanceEngine
	Dispatcher   *TaskDispatcher
	Approvals    *ApprovalProcessor
	Notification *NotificationService
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.TiDBConnection) *ServiceManager {
	sm := &ServiceManager{db: db}

	sm.TxManager = persistence.NewTransactionManager(db)

	definitionRepo := persistence.NewDefinitionRepository(db.DB())
	instanceRepo := persistence.NewInstanceRepository(db.DB())
	taskRepo := persistence.NewTaskRepository(db.DB())
	directoryRepo := persistence.NewDirectoryRepository(db.DB())
	sessionRepo := persistence.NewSessionRepository(db.DB())
	notificationRepo := persistence.NewNotificationRepository(db.DB())

	evaluator := expression.NewEngine()
	locks := NewInstanceLockManager()

	sm.Auth = NewAuthService(directoryRepo, sessionRepo)
	sm.Notification = NewNotificationService(taskRepo, instanceRepo, notificationRepo)
	sm.Definitions = NewDefinitionService(definitionRepo, evaluator)
	sm.Dispatcher = NewTaskDispatcher(directoryRepo, taskRepo, sm.Notification)

	sm.Engine = NewInstanceEngine(
		sm.Definitions,
		instanceRepo,
		taskRepo,
		sm.Dispatcher,
		evaluator,
		sm.Notification,
		locks,
		sm.TxManager,
	)
	sm.Approvals = NewApprovalProcessor(
		sm.Engine,
		sm.Definitions,
		instanceRepo,
		taskRepo,
		sm.Dispatcher,
		locks,
		sm.TxManager,
	)

	return sm
}

// StartBackgroundWorkers starts the notification feed refresh and session
// cleanup schedules. Call during server startup.
func (sm *ServiceManager) StartBackgroundWorkers() error {
	if err := sm.Notification.StartRefresh(); err != nil {
		return err
	}
	return sm.Auth.StartSessionCleanup()
}

// StopBackgroundWorkers stops background schedules gracefully.
// Call during server shutdown.
func (sm *ServiceManager) StopBackgroundWorkers() {
	sm.Notification.Stop()
	sm.Auth.StopSessionCleanup()
}
