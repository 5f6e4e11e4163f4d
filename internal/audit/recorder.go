package audit

import (
	"context"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Event is one security-relevant outcome. Every authentication outcome must
// be recorded; compliance depends on completeness.
type Event struct {
	Kind       domain.AuditKind
	IdentityID *string
	Email      *string
	TenantID   *string
	IP         string
	UserAgent  *string
	Details    map[string]any
}

// Recorder is fire-and-forget from the caller's perspective: Record never
// returns an error and must never fail the operation being audited.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// StoreRecorder appends events to the audit_events table and mirrors each
// one as a structured log line.
type StoreRecorder struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewStoreRecorder(db *gorm.DB, log *logrus.Logger) *StoreRecorder {
	return &StoreRecorder{db: db, log: log}
}

func (r *StoreRecorder) Record(ctx context.Context, ev Event) {
	row := domain.AuditEvent{
		ID:         uuid.NewString(),
		Kind:       ev.Kind,
		IdentityID: ev.IdentityID,
		Email:      ev.Email,
		TenantID:   ev.TenantID,
		IP:         ev.IP,
		UserAgent:  ev.UserAgent,
		Details:    ev.Details,
	}

	fields := logrus.Fields{"kind": ev.Kind, "ip": ev.IP}
	if ev.IdentityID != nil {
		fields["identity_id"] = *ev.IdentityID
	}
	if ev.Email != nil {
		fields["email"] = *ev.Email
	}
	if ev.TenantID != nil {
		fields["tenant_id"] = *ev.TenantID
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.log.WithError(err).WithFields(fields).Error("audit event not persisted")
		return
	}
	r.log.WithFields(fields).Info("audit")
}

// NopRecorder discards events. Test helper.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}
