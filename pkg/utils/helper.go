package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/uclf/legal-aid-portal/pkg/models"
)

// Audit actions recorded in case_histories.
const (
	ActionCreated       = "created"
	ActionStatusChanged = "status_changed"
	ActionUpdated       = "updated"
	ActionArchived      = "archived"
	ActionFileUploaded  = "file_uploaded"
)

// Actor identifies who performed a case action. Zero value means the public intake form.
type Actor struct {
	ProfileID string
	Name      string
}

// LogCaseHistory inserts an audit record into case_histories.
// Errors are ignored on purpose (best-effort logging).
func LogCaseHistory(
	ctx context.Context,
	db *gorm.DB,
	caseID uuid.UUID,
	actor Actor,
	action string,
	oldS, newS models.CaseStatus,
	reason string,
) {
	_ = db.WithContext(ctx).Create(&models.CaseHistory{
		CaseID:    caseID,
		ActorID:   actor.ProfileID,
		ActorName: actor.Name,
		Action:    action,
		OldStatus: oldS,
		NewStatus: newS,
		Reason:    reason,
		CreatedAt: time.Now(),
	}).Error
}
