package cases

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uclf/legal-aid-portal/pkg/models"
)

var (
	ErrCaseNotFound = errors.New("case not found")
	errFileLimit    = errors.New("file limit reached")
)

// Filter narrows the staff case list.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterAssigned Filter = "assigned" // anything past Pending
	FilterPending  Filter = "pending"
	FilterUrgent   Filter = "urgent" // High urgency
	FilterMine     Filter = "mine"   // assigned to the caller
)

func ParseFilter(s string) (Filter, bool) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, true
	case FilterAll, FilterAssigned, FilterPending, FilterUrgent, FilterMine:
		return f, true
	}
	return "", false
}

// ListQuery is a page of the staff case list.
type ListQuery struct {
	Page     int
	PageSize int
	Search   string // substring of caseRef or requesterName, case-insensitive
	Filter   Filter
	Advocate string // used by FilterMine
	Archived bool   // include archived cases
}

// Repository is the gorm-backed case store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Create(ctx context.Context, cs *models.Case) error {
	return r.db.WithContext(ctx).Create(cs).Error
}

func (r *Repository) Save(ctx context.Context, cs *models.Case) error {
	return r.db.WithContext(ctx).Omit("Files").Save(cs).Error
}

// RefExists reports whether ref is taken, ignoring case.
func (r *Repository) RefExists(ctx context.Context, ref string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Case{}).
		Where("UPPER(case_ref) = ?", strings.ToUpper(ref)).
		Count(&n).Error
	return n > 0, err
}

// FindByRef matches the reference exactly, ignoring case and surrounding space.
func (r *Repository) FindByRef(ctx context.Context, ref string) (*models.Case, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrCaseNotFound
	}
	var cs models.Case
	err := r.db.WithContext(ctx).
		Where("UPPER(case_ref) = ?", strings.ToUpper(ref)).
		First(&cs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// FindByID loads a case with its files.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	var cs models.Case
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&cs, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	if cs.Files == nil {
		cs.Files = []models.CaseFile{}
	}
	return &cs, nil
}

// List returns one page, most recent submission first.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]models.Case, int64, error) {
	dbq := r.db.WithContext(ctx).Model(&models.Case{})
	if !q.Archived {
		dbq = dbq.Where("archived = ?", false)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		dbq = dbq.Where("LOWER(case_ref) LIKE ? OR LOWER(requester_name) LIKE ?", like, like)
	}
	switch q.Filter {
	case FilterAssigned:
		dbq = dbq.Where("status <> ?", models.CasePending)
	case FilterPending:
		dbq = dbq.Where("status = ?", models.CasePending)
	case FilterUrgent:
		dbq = dbq.Where("urgency = ?", models.UrgencyHigh)
	case FilterMine:
		dbq = dbq.Where("assigned_advocate = ?", q.Advocate)
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	list := make([]models.Case, 0, q.PageSize)
	if err := dbq.Order("submission_date DESC").Order("created_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// History returns the audit trail of a case, oldest first.
func (r *Repository) History(ctx context.Context, caseID uuid.UUID) ([]models.CaseHistory, error) {
	out := []models.CaseHistory{}
	err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *Repository) CountFiles(ctx context.Context, caseID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CaseFile{}).Where("case_id = ?", caseID).Count(&n).Error
	return n, err
}

// AddFile records f unless the case already holds limit files. The case row is
// locked for the count so concurrent uploads cannot pass the limit together.
func (r *Repository) AddFile(ctx context.Context, f *models.CaseFile, limit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cs models.Case
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&cs, "id = ?", f.CaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCaseNotFound
			}
			return err
		}
		var n int64
		if err := tx.Model(&models.CaseFile{}).Where("case_id = ?", f.CaseID).Count(&n).Error; err != nil {
			return err
		}
		if n >= int64(limit) {
			return errFileLimit
		}
		return tx.Omit("Case").Create(f).Error
	})
}

func (r *Repository) FindFile(ctx context.Context, id uuid.UUID) (*models.CaseFile, error) {
	var f models.CaseFile
	err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Case{}).Count(&n).Error
	return n, err
}
