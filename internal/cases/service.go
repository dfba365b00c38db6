// Package cases implements legal-aid intake, tracking and the staff case workflow.
package cases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/uclf/legal-aid-portal/internal/events"
	"github.com/uclf/legal-aid-portal/internal/storage"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/metrics"
	"github.com/uclf/legal-aid-portal/pkg/models"
	"github.com/uclf/legal-aid-portal/pkg/sanitize"
	"github.com/uclf/legal-aid-portal/pkg/utils"
	"github.com/uclf/legal-aid-portal/pkg/validation"
)

const (
	IntakeCourtLevel   = "Pending Assessment"
	IntakeLatestUpdate = "New intake created. Awaiting secretariat review."

	MaxDocumentBytes   = 5 * 1024 * 1024
	MaxDocumentsPerRef = 5
)

var (
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrDocumentRejected  = errors.New("document rejected")
)

// ValidationError carries field errors in the Laravel-like shape.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string { return "validation failed" }

/* ================================ DTOs ================================= */

// IntakeRequest is the public legal-aid application form.
type IntakeRequest struct {
	RequesterName    string `json:"requesterName" validate:"required,min=2,max=120"`
	RequesterContact string `json:"requesterContact" validate:"required,max=60,contact"`
	Location         string `json:"location" validate:"required,max=120"`
	Program          string `json:"program" validate:"required,program"`
	Urgency          string `json:"urgency" validate:"required,urgency"`
	CourtLevel       string `json:"courtLevel" validate:"omitempty,max=80"`
	Description      string `json:"description" validate:"required,max=4000"`
}

// UpdateRequest edits case details. Nil fields are left untouched.
type UpdateRequest struct {
	CourtLevel       *string `json:"courtLevel" validate:"omitempty,max=80"`
	LatestUpdate     *string `json:"latestUpdate" validate:"omitempty,max=2000"`
	AssignedAdvocate *string `json:"assignedAdvocate" validate:"omitempty,max=120"`
}

// TrackView is what the public tracker shows. The contact is masked.
type TrackView struct {
	CaseRef          string            `json:"caseRef"`
	RequesterName    string            `json:"requesterName"`
	RequesterContact string            `json:"requesterContact"`
	Program          models.Program    `json:"program"`
	Urgency          models.Urgency    `json:"urgency"`
	Status           models.CaseStatus `json:"status"`
	SubmissionDate   string            `json:"submissionDate"`
	CourtLevel       string            `json:"courtLevel,omitempty"`
	AssignedAdvocate string            `json:"assignedAdvocate,omitempty"`
	LatestUpdate     string            `json:"latestUpdate,omitempty"`
}

/* =============================== Service ================================ */

// Options wires the service. Zero values fall back to in-process defaults.
type Options struct {
	RefPrefix string
	Location  *time.Location
	Now       func() time.Time
	Events    events.Publisher
	Objects   storage.Objects
	Log       *logger.Logger
}

type Service struct {
	db      *gorm.DB
	repo    *Repository
	refs    *RefGenerator
	loc     *time.Location
	now     func() time.Time
	events  events.Publisher
	objects storage.Objects
	log     *logger.Logger
}

func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:      db,
		repo:    NewRepository(db),
		refs:    NewRefGenerator(opts.RefPrefix),
		loc:     opts.Location,
		now:     opts.Now,
		events:  opts.Events,
		objects: opts.Objects,
		log:     opts.Log,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.objects == nil {
		s.objects = storage.NewMemory()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

func (s *Service) Repository() *Repository { return s.repo }

func (s *Service) publish(ctx context.Context, ev events.CaseEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish case event", zap.String("type", string(ev.Type)), zap.String("case_ref", ev.CaseRef), zap.Error(err))
	}
}

func validate(in any) error {
	errs, err := validation.Validate(in)
	if err != nil {
		return err
	}
	if errs != nil {
		return &ValidationError{Fields: errs}
	}
	return nil
}

/* ================================ Intake ================================ */

// Intake validates an application and stores it as a Pending case with a fresh reference.
func (s *Service) Intake(ctx context.Context, in IntakeRequest, actor utils.Actor) (*models.Case, error) {
	in.RequesterName = strings.TrimSpace(in.RequesterName)
	in.RequesterContact = strings.TrimSpace(in.RequesterContact)
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	if err := validate(in); err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	ref, err := s.refs.Unique(ctx, now.Year(), s.repo.RefExists)
	if err != nil {
		return nil, err
	}

	cs := &models.Case{
		CaseRef:          ref,
		RequesterName:    in.RequesterName,
		RequesterContact: in.RequesterContact,
		Location:         in.Location,
		Description:      in.Description,
		Urgency:          models.Urgency(in.Urgency),
		Status:           models.CasePending,
		SubmissionDate:   now.Format("2006-01-02"),
		Program:          models.Program(in.Program),
		CourtLevel:       IntakeCourtLevel,
		LatestUpdate:     IntakeLatestUpdate,
	}
	if err := s.repo.Create(ctx, cs); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	cs.Files = []models.CaseFile{}

	utils.LogCaseHistory(ctx, s.db, cs.ID, actor, utils.ActionCreated, "", models.CasePending, "")
	metrics.CasesCreatedTotal.WithLabelValues(string(cs.Program), string(cs.Urgency)).Inc()

	ev := events.NewCaseEvent(events.CaseCreated, cs.ID.String(), cs.CaseRef)
	ev.Program, ev.Urgency, ev.ActorID = string(cs.Program), string(cs.Urgency), actor.ProfileID
	s.publish(ctx, ev)

	s.log.Info("case intake accepted",
		zap.String("case_ref", cs.CaseRef),
		zap.String("program", string(cs.Program)),
		zap.String("urgency", string(cs.Urgency)),
	)
	return cs, nil
}

/* ================================ Track ================================= */

// Track finds a case by reference for the public tracker. Archived cases stay trackable.
func (s *Service) Track(ctx context.Context, ref string) (*TrackView, error) {
	cs, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &TrackView{
		CaseRef:          cs.CaseRef,
		RequesterName:    cs.RequesterName,
		RequesterContact: sanitize.MaskContact(cs.RequesterContact),
		Program:          cs.Program,
		Urgency:          cs.Urgency,
		Status:           cs.Status,
		SubmissionDate:   cs.SubmissionDate,
		CourtLevel:       cs.CourtLevel,
		AssignedAdvocate: cs.AssignedAdvocate,
		LatestUpdate:     cs.LatestUpdate,
	}, nil
}

/* ============================== Staff views ============================= */

func (s *Service) List(ctx context.Context, q ListQuery) ([]models.Case, int64, error) {
	return s.repo.List(ctx, q)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]models.CaseHistory, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

/* ============================== Transition ============================== */

// Transition moves a case along the status lattice. When the target needs an
// advocate and none is set, advocate (or the actor's name) is assigned.
// Nothing else on the case changes.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next models.CaseStatus, advocate string, actor utils.Actor) (*models.Case, error) {
	var out models.Case
	var from models.CaseStatus

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCaseNotFound
			}
			return err
		}
		from = out.Status
		if !from.CanTransitionTo(next) {
			return ErrInvalidTransition
		}

		updates := map[string]any{"status": next, "updated_at": s.now()}
		if next.NeedsAdvocate() && strings.TrimSpace(out.AssignedAdvocate) == "" {
			name := strings.TrimSpace(advocate)
			if name == "" {
				name = actor.Name
			}
			if name != "" {
				updates["assigned_advocate"] = name
				out.AssignedAdvocate = name
			}
		}

		// Guard on the status we read so a concurrent transition loses cleanly.
		res := tx.Model(&models.Case{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		out.Status = next

		utils.LogCaseHistory(ctx, tx, out.ID, actor, utils.ActionStatusChanged, from, next, "")
		return nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		if !errors.Is(err, ErrInvalidTransition) {
			outcome = "error"
		}
	}
	metrics.CaseTransitionsTotal.WithLabelValues(string(from), string(next), outcome).Inc()
	if err != nil {
		return nil, err
	}

	ev := events.NewCaseEvent(events.CaseStatusChanged, out.ID.String(), out.CaseRef)
	ev.OldStatus, ev.NewStatus, ev.ActorID = string(from), string(next), actor.ProfileID
	s.publish(ctx, ev)

	s.log.Info("case status changed",
		zap.String("case_ref", out.CaseRef),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("actor", actor.ProfileID),
	)
	return &out, nil
}

/* ============================ Update / Archive ========================== */

// Update edits court level, latest update and advocate.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateRequest, actor utils.Actor) (*models.Case, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	cs, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.AssignedAdvocate != nil {
		adv := strings.TrimSpace(*in.AssignedAdvocate)
		switch {
		case adv != "" && cs.Status == models.CasePending:
			return nil, &ValidationError{Fields: map[string][]string{
				"assignedAdvocate": {"An advocate can only be set once the case is Assigned."},
			}}
		case adv == "" && cs.Status.NeedsAdvocate():
			return nil, &ValidationError{Fields: map[string][]string{
				"assignedAdvocate": {"The advocate cannot be cleared on a " + string(cs.Status) + " case."},
			}}
		}
	}

	changed := make([]string, 0, 3)
	if in.CourtLevel != nil {
		cs.CourtLevel = strings.TrimSpace(*in.CourtLevel)
		changed = append(changed, "courtLevel")
	}
	if in.LatestUpdate != nil {
		cs.LatestUpdate = strings.TrimSpace(*in.LatestUpdate)
		changed = append(changed, "latestUpdate")
	}
	if in.AssignedAdvocate != nil {
		cs.AssignedAdvocate = strings.TrimSpace(*in.AssignedAdvocate)
		changed = append(changed, "assignedAdvocate")
	}
	if len(changed) == 0 {
		return cs, nil
	}
	if err := s.repo.Save(ctx, cs); err != nil {
		return nil, fmt.Errorf("update case: %w", err)
	}

	utils.LogCaseHistory(ctx, s.db, cs.ID, actor, utils.ActionUpdated, cs.Status, cs.Status, strings.Join(changed, ","))
	ev := events.NewCaseEvent(events.CaseUpdated, cs.ID.String(), cs.CaseRef)
	ev.ActorID = actor.ProfileID
	s.publish(ctx, ev)
	return cs, nil
}

// Archive hides a case from staff listings. It stays trackable by reference.
func (s *Service) Archive(ctx context.Context, id uuid.UUID, reason string, actor utils.Actor) (*models.Case, error) {
	cs, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cs.Archived {
		return cs, nil
	}
	cs.Archived = true
	if err := s.repo.Save(ctx, cs); err != nil {
		return nil, fmt.Errorf("archive case: %w", err)
	}

	utils.LogCaseHistory(ctx, s.db, cs.ID, actor, utils.ActionArchived, cs.Status, cs.Status, strings.TrimSpace(reason))
	ev := events.NewCaseEvent(events.CaseArchived, cs.ID.String(), cs.CaseRef)
	ev.ActorID = actor.ProfileID
	s.publish(ctx, ev)
	return cs, nil
}

/* =============================== Documents ============================== */

// Document is one uploaded supporting file.
type Document struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachDocument stores a supporting document for the case with ref.
func (s *Service) AttachDocument(ctx context.Context, ref string, doc Document, actor utils.Actor) (*models.CaseFile, error) {
	cs, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if doc.Size <= 0 {
		return nil, fmt.Errorf("%w: empty file", ErrDocumentRejected)
	}
	if doc.Size > MaxDocumentBytes {
		return nil, fmt.Errorf("%w: max 5MB per file", ErrDocumentRejected)
	}
	switch doc.ContentType {
	case "application/pdf", "image/png", "image/jpeg":
	default:
		return nil, fmt.Errorf("%w: only PDF, PNG or JPEG are allowed", ErrDocumentRejected)
	}

	// checked again when the record is written
	n, err := s.repo.CountFiles(ctx, cs.ID)
	if err != nil {
		return nil, err
	}
	if n >= MaxDocumentsPerRef {
		return nil, fmt.Errorf("%w: max %d files per case", ErrDocumentRejected, MaxDocumentsPerRef)
	}

	key := storage.ObjectKey(cs.CaseRef, doc.Name)
	if err := s.objects.Upload(ctx, key, doc.Body, doc.ContentType, doc.Size); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	rec := &models.CaseFile{
		CaseID:       cs.ID,
		Key:          key,
		Mime:         doc.ContentType,
		Size:         int(doc.Size),
		OriginalName: doc.Name,
	}
	if err := s.repo.AddFile(ctx, rec, MaxDocumentsPerRef); err != nil {
		_ = s.objects.Delete(ctx, key)
		if errors.Is(err, errFileLimit) {
			return nil, fmt.Errorf("%w: max %d files per case", ErrDocumentRejected, MaxDocumentsPerRef)
		}
		return nil, fmt.Errorf("record document: %w", err)
	}

	utils.LogCaseHistory(ctx, s.db, cs.ID, actor, utils.ActionFileUploaded, "", "", doc.Name)
	ev := events.NewCaseEvent(events.CaseFileUploaded, cs.ID.String(), cs.CaseRef)
	ev.ActorID = actor.ProfileID
	s.publish(ctx, ev)
	return rec, nil
}

// DocumentURL returns a short-lived download link for a stored document.
func (s *Service) DocumentURL(ctx context.Context, fileID uuid.UUID, expiresInSeconds int) (string, error) {
	f, err := s.repo.FindFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	return s.objects.SignedURL(ctx, f.Key, expiresInSeconds)
}
