package constants

// Database table names. Workflow tables carry the wf_ prefix, organization
// directory tables carry org_, and system tables carry sys_.
const (
	TableWorkflowDefinition = "wf_definition"
	TableWorkflowInstance   = "wf_instance"
	TableWorkflowTask       = "wf_task"

	TableUser       = "org_user"
	TableDepartment = "org_department"
	TableRole       = "org_role"

	TableSession      = "sys_session"
	TableNotification = "sys_notification"
)

// AllTables lists every table the schema bootstrap manages, in creation order
// (referenced tables first).
var AllTables = []string{
	TableDepartment,
	TableRole,
	TableUser,
	TableSession,
	TableWorkflowDefinition,
	TableWorkflowInstance,
	TableWorkflowTask,
	TableNotification,
}
