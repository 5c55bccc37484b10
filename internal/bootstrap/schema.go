package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/assetflow/backend/internal/infrastructure/database"
	"github.com/assetflow/backend/pkg/constants"
)

// tableDDL maps each managed table to its CREATE TABLE statement. Statements
// are idempotent; bootstrap runs on every server start.
var tableDDL = map[string]string{
	constants.TableDepartment: `CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		parent_id VARCHAR(64) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1
	)`,

	constants.TableRole: `CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1
	)`,

	constants.TableUser: `CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		department_id VARCHAR(64) NULL,
		role_id VARCHAR(64) NULL,
		manager_id VARCHAR(64) NULL,
		is_admin TINYINT(1) NOT NULL DEFAULT 0,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_user_department (department_id),
		KEY idx_user_role (role_id),
		KEY idx_user_manager (manager_id)
	)`,

	constants.TableSession: `CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		token TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		ip_address VARCHAR(64) NULL,
		user_agent VARCHAR(512) NULL,
		is_revoked TINYINT(1) NOT NULL DEFAULT 0,
		last_activity TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_session_user (user_id),
		KEY idx_session_expires (expires_at)
	)`,

	constants.TableWorkflowDefinition: `CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		code VARCHAR(128) NOT NULL,
		object_api_name VARCHAR(128) NOT NULL,
		version INT NOT NULL DEFAULT 1,
		status VARCHAR(32) NOT NULL,
		description TEXT NULL,
		graph JSON NOT NULL,
		variables JSON NULL,
		activated_date TIMESTAMP NULL,
		created_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_modified_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uk_definition_code_version (code, version),
		KEY idx_definition_object (object_api_name, status)
	)`,

	constants.TableWorkflowInstance: `CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		definition_id VARCHAR(64) NOT NULL,
		definition_version INT NOT NULL,
		object_api_name VARCHAR(128) NOT NULL,
		record_id VARCHAR(64) NOT NULL,
		status VARCHAR(32) NOT NULL,
		current_node_id VARCHAR(128) NULL,
		active_node_ids JSON NULL,
		join_state JSON NULL,
		initiator_id VARCHAR(64) NOT NULL,
		variables JSON NULL,
		error_message TEXT NULL,
		started_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_date TIMESTAMP NULL,
		KEY idx_instance_record (object_api_name, record_id, status),
		KEY idx_instance_definition (definition_id),
		KEY idx_instance_initiator (initiator_id)
	)`,

	constants.TableWorkflowTask: `CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		instance_id VARCHAR(64) NOT NULL,
		node_id VARCHAR(128) NOT NULL,
		node_name VARCHAR(255) NOT NULL,
		node_type VARCHAR(32) NOT NULL,
		assignee_id VARCHAR(64) NOT NULL,
		status VARCHAR(32) NOT NULL,
		round INT NOT NULL DEFAULT 1,
		seq INT NOT NULL DEFAULT 0,
		comments TEXT NULL,
		decided_by_id VARCHAR(64) NULL,
		decided_date TIMESTAMP NULL,
		created_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_task_instance (instance_id, node_id, round),
		KEY idx_task_assignee (assignee_id, status, created_date)
	)`,

	constants.TableNotification: `CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		recipient_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		body TEXT NULL,
		link VARCHAR(512) NULL,
		is_read TINYINT(1) NOT NULL DEFAULT 0,
		created_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_notification_recipient (recipient_id, created_date)
	)`,
}

// InitializeSchema creates all workflow, directory, and system tables.
// Tables are created in dependency order per constants.AllTables.
func InitializeSchema(db *database.TiDBConnection) error {
	log.Println("🔧 Initializing schema...")

	ctx := context.Background()
	for _, table := range constants.AllTables {
		ddl, ok := tableDDL[table]
		if !ok {
			return fmt.Errorf("no DDL registered for table %s", table)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf(ddl, table)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}

	log.Printf("✅ Schema initialized (%d tables)", len(constants.AllTables))
	return nil
}
