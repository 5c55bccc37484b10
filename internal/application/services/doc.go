// Package services provides the business logic layer for AssetFlow.
//
// This package contains all service implementations that handle:
//   - Workflow definition lifecycle and validation (DefinitionService)
//   - Instance execution: start, advance, cancel, halt (InstanceEngine)
//   - Assignee resolution and task creation (TaskDispatcher)
//   - Approve/reject/return decisions (ApprovalProcessor)
//   - Login, sessions, and token validation (AuthService)
//   - The pending-task feed and notifications (NotificationService)
//
// All services follow clean architecture principles with dependency injection
// and are designed to be testable and maintainable.
package services
