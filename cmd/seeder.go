package cmd

import (
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with base roles, permissions, an admin user and a sample organization tree.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{
				"organization_user", "user_roles", "role_permissions",
				"password_reset_tokens", "organizations", "roles", "permissions", "users",
			} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		adminID := seedUser(db, "admin@mail.com", "Admin", string(hash))
		memberID := seedUser(db, "alex@mail.com", "Alex", string(hash))

		permissions := []struct {
			Name string
			Desc string
		}{
			{"manage_users", "Can create, update and delete users"},
			{"manage_organizations", "Can create, update and delete organizations"},
			{"manage_roles", "Can manage roles and permission assignments"},
			{"view_directory", "Can browse the organization directory"},
		}
		for _, p := range permissions {
			var pid int64
			if err := db.Raw("SELECT id FROM permissions WHERE name = ?", p.Name).Row().Scan(&pid); err != nil {
				if err := db.Exec("INSERT INTO permissions (name, description, created_at) VALUES (?, ?, now())", p.Name, p.Desc).Error; err != nil {
					log.Fatalf("failed to insert permission %s: %v", p.Name, err)
				}
			}
		}

		adminRoleID := seedRole(db, "admin", "full administrator")
		memberRoleID := seedRole(db, "member", "regular member")

		for _, p := range permissions {
			grantPermission(db, adminRoleID, p.Name)
		}
		grantPermission(db, memberRoleID, "view_directory")

		assignRole(db, adminID, adminRoleID)
		assignRole(db, memberID, memberRoleID)

		hqID := seedOrganization(db, "Headquarters", "company", nil)
		engID := seedOrganization(db, "Engineering", "department", &hqID)
		finID := seedOrganization(db, "Finance", "department", &hqID)
		platformID := seedOrganization(db, "Platform", "team", &engID)

		addMembership(db, hqID, adminID)
		addMembership(db, platformID, memberID)
		_ = finID

		fmt.Println("Seed data loaded: admin@mail.com / alex@mail.com (password: password)")
	},
}

func seedUser(db *gorm.DB, email, name, hash string) int64 {
	var id int64
	if err := db.Raw("SELECT id FROM users WHERE email = ?", email).Row().Scan(&id); err == nil {
		fmt.Printf("user %s already exists\n", email)
		return id
	}
	err := db.Raw(
		"INSERT INTO users (email, name, password_hash, is_active, email_verified_at, created_at, updated_at) VALUES (?, ?, ?, true, now(), now(), now()) RETURNING id",
		email, name, hash,
	).Row().Scan(&id)
	if err != nil {
		log.Fatalf("failed to insert user %s: %v", email, err)
	}
	fmt.Println("Seeded user:", email)
	return id
}

func seedRole(db *gorm.DB, name, description string) int64 {
	var id int64
	if err := db.Raw("SELECT id FROM roles WHERE name = ?", name).Row().Scan(&id); err == nil {
		return id
	}
	err := db.Raw(
		"INSERT INTO roles (name, description, created_at, updated_at) VALUES (?, ?, now(), now()) RETURNING id",
		name, description,
	).Row().Scan(&id)
	if err != nil {
		log.Fatalf("failed to insert role %s: %v", name, err)
	}
	fmt.Println("Seeded role:", name)
	return id
}

func grantPermission(db *gorm.DB, roleID int64, permissionName string) {
	var pid int64
	if err := db.Raw("SELECT id FROM permissions WHERE name = ?", permissionName).Row().Scan(&pid); err != nil {
		log.Fatalf("permission not found %s: %v", permissionName, err)
	}

	var exists int
	if err := db.Raw("SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_id = ?", roleID, pid).Row().Scan(&exists); err == nil {
		return
	}
	if err := db.Exec("INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)", roleID, pid).Error; err != nil {
		log.Fatalf("failed to grant permission %s: %v", permissionName, err)
	}
}

func assignRole(db *gorm.DB, userID, roleID int64) {
	var exists int
	if err := db.Raw("SELECT 1 FROM user_roles WHERE user_id = ? AND role_id = ?", userID, roleID).Row().Scan(&exists); err == nil {
		return
	}
	if err := db.Exec("INSERT INTO user_roles (user_id, role_id, created_at) VALUES (?, ?, now())", userID, roleID).Error; err != nil {
		log.Fatalf("failed to assign role: %v", err)
	}
}

func seedOrganization(db *gorm.DB, name, orgType string, parentID *string) string {
	var id string
	query := "SELECT id FROM organizations WHERE name = ? AND parent_id IS NULL AND deleted_at IS NULL"
	args := []interface{}{name}
	if parentID != nil {
		query = "SELECT id FROM organizations WHERE name = ? AND parent_id = ? AND deleted_at IS NULL"
		args = append(args, *parentID)
	}
	if err := db.Raw(query, args...).Row().Scan(&id); err == nil {
		return id
	}

	id = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	err := db.Exec(
		"INSERT INTO organizations (id, name, type, parent_id, monthly_budget, status, created_at, updated_at) VALUES (?, ?, ?, ?, 0, 'ACTIVE', now(), now())",
		id, name, orgType, parentID,
	).Error
	if err != nil {
		log.Fatalf("failed to insert organization %s: %v", name, err)
	}
	fmt.Println("Seeded organization:", name)
	return id
}

func addMembership(db *gorm.DB, orgID string, userID int64) {
	var exists int
	if err := db.Raw("SELECT 1 FROM organization_user WHERE organization_id = ? AND user_id = ?", orgID, userID).Row().Scan(&exists); err == nil {
		return
	}
	if err := db.Exec("INSERT INTO organization_user (organization_id, user_id, created_at, updated_at) VALUES (?, ?, now(), now())", orgID, userID).Error; err != nil {
		log.Fatalf("failed to add membership: %v", err)
	}
}
