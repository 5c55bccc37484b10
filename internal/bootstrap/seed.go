package bootstrap

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"

	"github.com/assetflow/backend/internal/application/services"
	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/internal/infrastructure/database"
	"github.com/assetflow/backend/internal/infrastructure/persistence"
	"github.com/assetflow/backend/pkg/auth"
	"github.com/assetflow/backend/pkg/constants"
)

//go:embed seed_data.json
var seedDataJSON []byte

type SeedData struct {
	Departments []struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		ParentID *string `json:"parent_id,omitempty"`
	} `json:"departments"`
	Roles []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"roles"`
	Users []struct {
		ID           string  `json:"id"`
		Name         string  `json:"name"`
		Email        string  `json:"email"`
		Password     string  `json:"password"`
		DepartmentID *string `json:"department_id,omitempty"`
		RoleID       *string `json:"role_id,omitempty"`
		ManagerID    *string `json:"manager_id,omitempty"`
		IsAdmin      bool    `json:"is_admin"`
	} `json:"users"`
}

// InitializeDirectory ensures the seed departments, roles, and users exist.
// This should be called during server startup BEFORE accepting requests.
func InitializeDirectory(db *database.TiDBConnection) error {
	log.Println("🔧 Initializing organization directory...")

	var data SeedData
	if err := json.Unmarshal(seedDataJSON, &data); err != nil {
		return fmt.Errorf("failed to parse seed_data.json: %w", err)
	}

	ctx := context.Background()
	directory := persistence.NewDirectoryRepository(db.DB())

	for _, d := range data.Departments {
		if err := directory.UpsertDepartment(ctx, &models.Department{
			ID:       d.ID,
			Name:     d.Name,
			ParentID: d.ParentID,
			IsActive: true,
		}); err != nil {
			return err
		}
	}
	log.Printf("   ✅ Ensure %d departments", len(data.Departments))

	for _, r := range data.Roles {
		if err := directory.UpsertRole(ctx, &models.Role{
			ID:       r.ID,
			Name:     r.Name,
			IsActive: true,
		}); err != nil {
			return err
		}
	}
	log.Printf("   ✅ Ensure %d roles", len(data.Roles))

	for _, u := range data.Users {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", u.Email, err)
		}
		if err := directory.UpsertUser(ctx, &models.OrgUser{
			ID:           u.ID,
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: hash,
			DepartmentID: u.DepartmentID,
			RoleID:       u.RoleID,
			ManagerID:    u.ManagerID,
			IsAdmin:      u.IsAdmin,
			IsActive:     true,
		}); err != nil {
			return err
		}
	}
	log.Printf("   ✅ Ensure %d users", len(data.Users))

	return nil
}

// seedUser is the actor the workflow seed runs as.
var seedUser = &models.UserSession{ID: "user-admin", Name: "System Administrator", IsAdmin: true}

// InitializeWorkflows ensures the demo workflow definitions exist and are
// active. Existing codes are left alone so admin edits survive restarts.
func InitializeWorkflows(svcMgr *services.ServiceManager) error {
	log.Println("🔧 Initializing workflow definitions...")

	ctx := context.Background()
	existing, err := svcMgr.Definitions.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflow definitions: %w", err)
	}
	seeded := make(map[string]bool)
	for _, def := range existing {
		seeded[def.Code] = true
	}

	for _, req := range seedDefinitions() {
		if seeded[req.Code] {
			continue
		}
		def, err := svcMgr.Definitions.Create(ctx, req, seedUser)
		if err != nil {
			return fmt.Errorf("failed to seed workflow %s: %w", req.Code, err)
		}
		if _, err := svcMgr.Definitions.Activate(ctx, def.ID, seedUser); err != nil {
			return fmt.Errorf("failed to activate workflow %s: %w", req.Code, err)
		}
		log.Printf("   ✅ Seeded workflow %s v%d", def.Code, def.Version)
	}

	return nil
}

func seedDefinitions() []services.DefinitionRequest {
	return []services.DefinitionRequest{
		{
			Name:          "Asset Pickup Approval",
			Code:          "asset_pickup",
			ObjectAPIName: "asset_pickup",
			Description:   "Manager sign-off before an asset leaves the storeroom",
			Graph: models.Graph{
				Nodes: []models.Node{
					{ID: "start", Type: constants.NodeTypeStart, Name: "Start"},
					{ID: "manager", Type: constants.NodeTypeApproval, Name: "Manager Approval",
						Assignment: &models.AssignmentRule{
							Type:  constants.AssigneeTypeSuperior,
							Level: 1,
							Mode:  constants.ApprovalModeAny,
						}},
					{ID: "done", Type: constants.NodeTypeNotify, Name: "Pickup Approved",
						Message: "Your asset pickup request was approved"},
					{ID: "end", Type: constants.NodeTypeEnd, Name: "End"},
				},
				Edges: []models.Edge{
					{Source: "start", Target: "manager"},
					{Source: "manager", Target: "done"},
					{Source: "done", Target: "end"},
				},
			},
		},
		{
			Name:          "Asset Purchase Approval",
			Code:          "asset_purchase",
			ObjectAPIName: "asset_purchase",
			Description:   "Purchases over 10000 need finance review on top of the manager",
			Graph: models.Graph{
				Nodes: []models.Node{
					{ID: "start", Type: constants.NodeTypeStart, Name: "Start"},
					{ID: "route", Type: constants.NodeTypeCondition, Name: "Amount Check"},
					{ID: "manager", Type: constants.NodeTypeApproval, Name: "Manager Approval",
						Assignment: &models.AssignmentRule{
							Type:  constants.AssigneeTypeSuperior,
							Level: 1,
							Mode:  constants.ApprovalModeAny,
						}},
					{ID: "finance", Type: constants.NodeTypeApproval, Name: "Finance Review",
						Assignment: &models.AssignmentRule{
							Type:     constants.AssigneeTypeDept,
							TargetID: "dept-fin",
							Mode:     constants.ApprovalModeAny,
						}},
					{ID: "end", Type: constants.NodeTypeEnd, Name: "End"},
				},
				Edges: []models.Edge{
					{Source: "start", Target: "route"},
					{Source: "route", Target: "finance", Guard: "amount > 10000", Label: "High value"},
					{Source: "route", Target: "manager", Label: "Default"},
					{Source: "finance", Target: "manager"},
					{Source: "manager", Target: "end"},
				},
			},
			Variables: []models.VariableDecl{
				{Name: "amount", Type: "number", Required: true},
			},
		},
	}
}
