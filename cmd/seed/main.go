package main

import (
	"log"
	"os"
	"time"

	"assesshub/internal/database"
	"assesshub/internal/domain"
	"assesshub/internal/pkg/password"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"
)

// Seeds a super admin, a demo tenant with a client admin and assessors, and
// one assessment to delegate against. Safe to re-run: identities upsert by
// email.
func main() {
	_ = godotenv.Load()

	db, err := database.Connect(envOr("DATABASE_URL", "assesshub.db"))
	if err != nil {
		log.Fatal("DB connection failed: ", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed: ", err)
	}

	hasher := password.NewHasher(password.DefaultParams())

	mustHash := func(pw string) *string {
		h, err := hasher.Hash(pw)
		if err != nil {
			log.Fatal("hash failed: ", err)
		}
		return &h
	}

	tenantID := "7f0c1f62-1a2b-4a3c-9d4e-5f6a7b8c9d0e"

	identities := []domain.Identity{
		{
			ID:           uuid.NewString(),
			Email:        "root@assesshub.io",
			PasswordHash: mustHash("Root#2024!"),
			Name:         "Platform Root",
			Role:         domain.RoleSuperAdmin,
			Active:       true,
			Verified:     true,
		},
		{
			ID:           uuid.NewString(),
			Email:        "analyst@assesshub.io",
			PasswordHash: mustHash("Analyst#2024!"),
			Name:         "Lead Analyst",
			Role:         domain.RoleAnalyst,
			Active:       true,
			Verified:     true,
		},
		{
			ID:           uuid.NewString(),
			Email:        "admin@acme.example",
			PasswordHash: mustHash("Acme#2024!"),
			Name:         "Acme Admin",
			Role:         domain.RoleClientAdmin,
			TenantID:     &tenantID,
			Active:       true,
			Verified:     true,
		},
		{
			ID:           uuid.NewString(),
			Email:        "assessor@acme.example",
			PasswordHash: mustHash("Assessor#2024!"),
			Name:         "Acme Assessor",
			Role:         domain.RoleAssessor,
			TenantID:     &tenantID,
			Active:       true,
			Verified:     true,
		},
	}

	for i := range identities {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"password_hash", "name", "role", "tenant_id", "active", "verified"}),
		}).Create(&identities[i])
		if res.Error != nil {
			log.Fatal("seed identity failed: ", res.Error)
		}
	}

	var admin domain.Identity
	if err := db.Where("email = ?", "admin@acme.example").First(&admin).Error; err != nil {
		log.Fatal("seed lookup failed: ", err)
	}

	assessment := domain.Assessment{
		ID:        "3b9a2c40-8d1e-4f5a-b6c7-d8e9f0a1b2c3",
		TenantID:  tenantID,
		CreatedBy: admin.ID,
		Title:     "Acme Annual Security Review",
	}
	db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "created_by", "title"}),
	}).Create(&assessment)

	var assessor domain.Identity
	if err := db.Where("email = ?", "assessor@acme.example").First(&assessor).Error; err != nil {
		log.Fatal("seed lookup failed: ", err)
	}

	grant := domain.DelegationGrant{
		ID:           "6c2d8e10-4f3a-4b2c-8d1e-0f1a2b3c4d5e",
		AssessmentID: assessment.ID,
		GranteeID:    assessor.ID,
		GrantorID:    admin.ID,
		Status:       domain.DelegationActive,
		Note:         "seeded demo grant",
	}
	db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"assessment_id", "grantee_id", "grantor_id", "status", "note"}),
	}).Create(&grant)

	log.Println("Seed completed at", time.Now().Format(time.RFC3339))
	log.Println("Super admin: root@assesshub.io / Root#2024! (MFA enrollment required on first login)")
	log.Println("Analyst:     analyst@assesshub.io / Analyst#2024!")
	log.Println("Tenant admin: admin@acme.example / Acme#2024!")
	log.Println("Assessor:     assessor@acme.example / Assessor#2024!")
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
