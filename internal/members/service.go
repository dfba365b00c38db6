// Package members serves the fraternity member directory and the admin member registry.
package members

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/uclf/legal-aid-portal/internal/store"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/models"
	"github.com/uclf/legal-aid-portal/pkg/validation"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrEmailTaken     = errors.New("email already registered")
)

// ValidationError carries field errors in the Laravel-like shape.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string { return "validation failed" }

/* ================================ DTOs ================================= */

// Entry is a directory card. Fields the member chose to hide are empty.
type Entry struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Tier           models.Role `json:"tier"`
	Specialization string      `json:"specialization,omitempty"`
	Location       string      `json:"location,omitempty"`
	Email          string      `json:"email,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	Church         string      `json:"church,omitempty"`
}

// Viewer is the logged-in caller whose own privacy flags override the stored ones.
type Viewer struct {
	Name    string
	Email   string
	Privacy models.Visibility
}

type RegisterRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=120"`
	Email          string `json:"email" validate:"required,email,max=120"`
	Phone          string `json:"phone" validate:"omitempty,contact"`
	Tier           string `json:"tier" validate:"required,tier"`
	Specialization string `json:"specialization" validate:"max=160"`
	Location       string `json:"location" validate:"max=80"`
	Church         string `json:"church" validate:"max=120"`
	Status         string `json:"status" validate:"omitempty,memberstatus"`
	Joined         string `json:"joined" validate:"max=20"`
	PublicProfile  *bool  `json:"publicProfile"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,memberstatus"`
}

// AdminQuery is a page of the admin registry.
type AdminQuery struct {
	Page     int
	PageSize int
	Search   string
	Tier     models.Role
	Status   models.MemberStatus
}

/* =============================== Service ================================ */

type Service struct {
	db    *gorm.DB
	store store.Store
	now   func() time.Time
	log   *logger.Logger
}

func NewService(db *gorm.DB, s store.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: db, store: s, now: time.Now, log: log}
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

// Directory lists members who opted into the public registry.
// tier may be empty for all tiers. viewer may be nil for anonymous callers.
func (s *Service) Directory(ctx context.Context, search string, tier models.Role, viewer *Viewer) ([]Entry, error) {
	q := s.db.WithContext(ctx).Where("status <> ?", models.MemberInactive)
	if tier != "" {
		q = q.Where("tier = ?", tier)
	}
	var all []models.Member
	if err := q.Find(&all).Error; err != nil {
		return nil, err
	}

	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]Entry, 0, len(all))
	for _, m := range all {
		vis := m.Visibility
		if viewer != nil && viewer.matches(m) {
			vis = viewer.Privacy
		}
		if !vis.PublicProfile {
			continue
		}
		if term != "" && !matchesSearch(m, vis, term) {
			continue
		}
		out = append(out, project(m, vis))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *Viewer) matches(m models.Member) bool {
	if v.Email != "" && strings.EqualFold(v.Email, m.Email) {
		return true
	}
	return v.Name != "" && v.Name == m.Name
}

// Hidden specializations are not searchable.
func matchesSearch(m models.Member, vis models.Visibility, term string) bool {
	if strings.Contains(strings.ToLower(m.Name), term) ||
		strings.Contains(strings.ToLower(m.Location), term) {
		return true
	}
	return vis.Specialization && strings.Contains(strings.ToLower(m.Specialization), term)
}

func project(m models.Member, vis models.Visibility) Entry {
	e := Entry{ID: m.ID, Name: m.Name, Tier: m.Tier, Church: m.Church}
	if vis.Specialization {
		e.Specialization = m.Specialization
	}
	if vis.Location {
		e.Location = m.Location
	}
	if vis.Email {
		e.Email = m.Email
	}
	if vis.Phone {
		e.Phone = m.Phone
	}
	return e
}

/* =============================== Privacy ================================ */

// Privacy returns the caller's directory flags. Unset means everything visible.
func (s *Service) Privacy(ctx context.Context, profileID string, tier models.Role) (models.Visibility, error) {
	vis := models.FullVisibility()
	if _, err := store.GetJSON(ctx, s.store, profileID, store.PrivacyKey(tier), &vis); err != nil {
		return models.FullVisibility(), err
	}
	return vis, nil
}

func (s *Service) SetPrivacy(ctx context.Context, profileID string, tier models.Role, vis models.Visibility) error {
	return store.SetJSON(ctx, s.store, profileID, store.PrivacyKey(tier), vis)
}

/* ================================ Admin ================================= */

func (s *Service) Register(ctx context.Context, in RegisterRequest) (*models.Member, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate(in); err != nil {
		return nil, err
	}
	tier, _ := models.ParseRole(in.Tier)

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Member{}).Where("LOWER(email) = ?", in.Email).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrEmailTaken
	}

	m := &models.Member{
		Name:           in.Name,
		Email:          in.Email,
		Phone:          strings.TrimSpace(in.Phone),
		Tier:           tier,
		Specialization: strings.TrimSpace(in.Specialization),
		Location:       strings.TrimSpace(in.Location),
		Church:         strings.TrimSpace(in.Church),
		Status:         models.MemberStatus(in.Status),
		Joined:         strings.TrimSpace(in.Joined),
		Visibility:     models.FullVisibility(),
	}
	if m.Status == "" {
		m.Status = models.MemberActive
	}
	if m.Joined == "" {
		m.Joined = s.now().Format("Jan 2006")
	}
	if in.PublicProfile != nil {
		m.Visibility.PublicProfile = *in.PublicProfile
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("register member: %w", err)
	}
	s.log.Info("member registered", zap.String("member_id", m.ID.String()), zap.String("tier", string(m.Tier)))
	return m, nil
}

func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status models.MemberStatus) (*models.Member, error) {
	if err := validate(StatusRequest{Status: string(status)}); err != nil {
		return nil, err
	}
	var m models.Member
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if m.Status == status {
		return &m, nil
	}
	old := m.Status
	if err := s.db.WithContext(ctx).Model(&m).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update member status: %w", err)
	}
	m.Status = status
	s.log.Info("member status changed",
		zap.String("member_id", m.ID.String()),
		zap.String("from", string(old)),
		zap.String("to", string(status)),
	)
	return &m, nil
}

// List is the admin registry view, sorted by name.
func (s *Service) List(ctx context.Context, q AdminQuery) ([]models.Member, int64, error) {
	dbq := s.db.WithContext(ctx).Model(&models.Member{})
	if t := strings.TrimSpace(q.Search); t != "" {
		like := "%" + strings.ToLower(t) + "%"
		dbq = dbq.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(location) LIKE ?", like, like, like)
	}
	if q.Tier != "" {
		dbq = dbq.Where("tier = ?", q.Tier)
	}
	if q.Status != "" {
		dbq = dbq.Where("status = ?", q.Status)
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	list := make([]models.Member, 0, q.PageSize)
	err := dbq.Order("name ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&list).Error
	return list, total, err
}
