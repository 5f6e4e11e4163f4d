package domain

import "time"

// Assessment is the minimal view of an assessment this core needs for
// access decisions: who owns it and which tenant it belongs to. Scoring and
// content live elsewhere.
type Assessment struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	TenantID  string `json:"tenant_id" gorm:"size:36;index;not null"`
	CreatedBy string `json:"created_by" gorm:"size:36;not null"`
	Title     string `json:"title" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Assessment) TableName() string { return "assessments" }

// DomainAssignment links an assessor to the assessment domains they may work
// in, pre-bound by the invitation that onboarded them.
type DomainAssignment struct {
	ID           string   `json:"id" gorm:"primaryKey;size:36"`
	IdentityID   string   `json:"identity_id" gorm:"size:36;index;not null"`
	AssessmentID *string  `json:"assessment_id,omitempty" gorm:"size:36;index"`
	DomainIDs    []string `json:"domain_ids" gorm:"type:json;serializer:json"`
	AssignedBy   *string  `json:"assigned_by,omitempty" gorm:"size:36"`

	CreatedAt time.Time `json:"created_at"`
}

func (DomainAssignment) TableName() string { return "domain_assignments" }
