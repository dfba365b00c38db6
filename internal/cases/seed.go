package cases

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uclf/legal-aid-portal/pkg/models"
)

// SeedCases is the fixed case set loaded on first start.
func SeedCases() []models.Case {
	return []models.Case{
		{
			CaseRef:          "UCLF-2024-8192",
			RequesterName:    "Jane Nakato",
			RequesterContact: "0701XXXXXX",
			Description:      "High Court Bail application for capital offense suspect. The applicant has been in custody for over 120 days without trial.",
			Urgency:          models.UrgencyHigh,
			Status:           models.CaseInProgress,
			SubmissionDate:   "2024-03-15",
			Program:          models.ProgramBailBondAssist,
			CourtLevel:       "High Court",
			AssignedAdvocate: "Counsel David K.",
			LatestUpdate:     "Sureties verified by regional coordinator. Hearing set for next Tuesday.",
		},
		{
			CaseRef:          "UCLF-2024-7721",
			RequesterName:    "John Baptist",
			RequesterContact: "0772XXXXXX",
			Location:         "Kayunga",
			Description:      "Plea bargain coordination for 15 inmates in Kayunga Prison. Minor offenses including theft and common assault.",
			Urgency:          models.UrgencyMedium,
			Status:           models.CaseAssigned,
			SubmissionDate:   "2024-03-10",
			Program:          models.ProgramKayungaPleaBargain,
			CourtLevel:       "Chief Magistrates Court",
			AssignedAdvocate: "Counsel Advocate",
			LatestUpdate:     "Preliminary list of candidates sent to DPP for review.",
		},
		{
			CaseRef:          "UCLF-2024-5501",
			RequesterName:    "Sarah Namono",
			RequesterContact: "0755XXXXXX",
			Location:         "Masaka",
			Description:      "Land eviction case for widow in Masaka region. Attempted land grabbing by extended family members.",
			Urgency:          models.UrgencyHigh,
			Status:           models.CasePending,
			SubmissionDate:   "2024-03-18",
			Program:          models.ProgramLandMediation,
			CourtLevel:       "High Court - Land Division",
			LatestUpdate:     "Initial assessment completed. Waiting for regional hub verification of indigent status.",
		},
		{
			CaseRef:          "UCLF-2024-6612",
			RequesterName:    "Moses Okello",
			RequesterContact: "0788XXXXXX",
			Description:      "Magistrates representation for theft charge. Suspect claims mistaken identity.",
			Urgency:          models.UrgencyLow,
			Status:           models.CaseAssigned,
			SubmissionDate:   "2024-03-20",
			Program:          models.ProgramMagistratesRep,
			CourtLevel:       "Magistrates Court Grade I",
			AssignedAdvocate: "Counsel Advocate",
			LatestUpdate:     "File requisitioned from police. First mention next Friday.",
		},
		{
			CaseRef:          "UCLF-2024-9001",
			RequesterName:    "Moses Okello",
			RequesterContact: "0771234567",
			Description:      "Bail application for suspect in detention over 48 hours.",
			Urgency:          models.UrgencyHigh,
			Status:           models.CaseAssigned,
			SubmissionDate:   "2024-03-20",
			Program:          models.ProgramBailBondAssist,
			AssignedAdvocate: "Counsel Grace Aber",
			LatestUpdate:     "Advocate assigned. Police bond papers being processed.",
		},
	}
}

// Seed inserts the fixed case set. Refs already present are skipped, so it
// is safe to run on every start.
func Seed(ctx context.Context, db *gorm.DB) (int64, error) {
	rows := SeedCases()
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "case_ref"}}, DoNothing: true}).
		Omit("Files").
		Create(&rows)
	return res.RowsAffected, res.Error
}
