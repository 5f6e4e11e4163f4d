package domain

import "time"

type DelegationStatus string

const (
	DelegationActive  DelegationStatus = "active"
	DelegationRevoked DelegationStatus = "revoked"
)

// DelegationGrant is a narrow access override: it authorizes one grantee for
// one assessment, or one domain of it when DomainID is set. A nil DomainID
// covers every domain of the assessment. Revocation is monotonic; a revoked
// grant is never reactivated, a new grant is created instead.
type DelegationGrant struct {
	ID string `json:"id" gorm:"primaryKey;size:36"`

	AssessmentID string  `json:"assessment_id" gorm:"size:36;index;not null"`
	DomainID     *string `json:"domain_id,omitempty" gorm:"size:36;index"`

	GranteeID string `json:"grantee_id" gorm:"size:36;index;not null"`
	GrantorID string `json:"grantor_id" gorm:"size:36;not null"`

	Status DelegationStatus `json:"status" gorm:"size:16;index;not null;default:active"`
	Note   string           `json:"note,omitempty" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DelegationGrant) TableName() string { return "delegation_grants" }

// Covers reports whether an active grant authorizes access to the given
// domain of its assessment.
func (g *DelegationGrant) Covers(domainID *string) bool {
	if g.Status != DelegationActive {
		return false
	}
	if g.DomainID == nil {
		return true
	}
	return domainID != nil && *g.DomainID == *domainID
}
