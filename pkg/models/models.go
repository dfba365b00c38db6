package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* =============================== Enums ================================== */

// Role is the membership tier of the caller. It drives quotas and dashboard routing.
type Role string

const (
	RoleGuest      Role = "Guest"
	RoleStudent    Role = "Student"
	RoleAssociate  Role = "Associate"
	RoleFullMember Role = "Full Member"
	RoleAdmin      Role = "Admin"
)

// Roles lists every tier in ascending order of privilege.
var Roles = []Role{RoleGuest, RoleStudent, RoleAssociate, RoleFullMember, RoleAdmin}

// ParseRole accepts a tier name case-insensitively ("full" and "advocate" map to Full Member).
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "guest":
		return RoleGuest, true
	case "student":
		return RoleStudent, true
	case "associate":
		return RoleAssociate, true
	case "full member", "full", "advocate":
		return RoleFullMember, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleStudent, RoleAssociate, RoleFullMember, RoleAdmin:
		return true
	}
	return false
}

// Dashboard returns the landing route for the tier.
func (r Role) Dashboard() string {
	switch r {
	case RoleAdmin:
		return "/admin-dashboard"
	case RoleFullMember:
		return "/case-management"
	case RoleAssociate:
		return "/associate-dashboard"
	case RoleStudent:
		return "/student-dashboard"
	case RoleGuest:
		return "/"
	}
	return "/"
}

// IsStaff reports whether the tier may work on legal-aid cases.
func (r Role) IsStaff() bool {
	switch r {
	case RoleFullMember, RoleAdmin:
		return true
	case RoleGuest, RoleStudent, RoleAssociate:
		return false
	}
	return false
}

// Slug is the lowercase key fragment used for per-tier storage keys.
func (r Role) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(r)), " ", "_")
}

// CaseStatus defines lifecycle states for a legal-aid case.
type CaseStatus string

const (
	CasePending    CaseStatus = "Pending"
	CaseAssigned   CaseStatus = "Assigned"
	CaseInProgress CaseStatus = "In Progress"
	CaseResolved   CaseStatus = "Resolved"
	CaseClosed     CaseStatus = "Closed"
)

// CaseStatuses lists every status in workflow order.
var CaseStatuses = []CaseStatus{CasePending, CaseAssigned, CaseInProgress, CaseResolved, CaseClosed}

func (s CaseStatus) rank() int {
	switch s {
	case CasePending:
		return 0
	case CaseAssigned:
		return 1
	case CaseInProgress:
		return 2
	case CaseResolved:
		return 3
	case CaseClosed:
		return 4
	}
	return -1
}

func (s CaseStatus) Valid() bool { return s.rank() >= 0 }

// Terminal reports whether no further transition is allowed.
func (s CaseStatus) Terminal() bool { return s == CaseResolved || s == CaseClosed }

// CanTransitionTo enforces the forward lattice:
// Pending -> Assigned -> In Progress -> Resolved, skipping forward allowed,
// Closed reachable from any non-terminal state.
func (s CaseStatus) CanTransitionTo(next CaseStatus) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() || s == next {
		return false
	}
	if next == CaseClosed {
		return true
	}
	return next.rank() > s.rank()
}

// NeedsAdvocate reports whether a case in this status must carry an assigned advocate.
func (s CaseStatus) NeedsAdvocate() bool {
	return s == CaseAssigned || s == CaseInProgress || s == CaseResolved
}

// Urgency is chosen by the applicant at intake.
type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

func (u Urgency) Valid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// Program is one of the fixed legal-aid program categories.
type Program string

const (
	ProgramCapitalDefense     Program = "Capital Defense (High Court)"
	ProgramMagistratesRep     Program = "Magistrates Representation"
	ProgramBailBondAssist     Program = "Bail & Bond Assistance"
	ProgramKayungaPleaBargain Program = "Kayunga Plea Bargain Program"
	ProgramLandMediation      Program = "Land Mediation"
	ProgramRefugeeProtection  Program = "Refugee Protection"
)

var Programs = []Program{
	ProgramCapitalDefense, ProgramMagistratesRep, ProgramBailBondAssist,
	ProgramKayungaPleaBargain, ProgramLandMediation, ProgramRefugeeProtection,
}

func (p Program) Valid() bool {
	for _, v := range Programs {
		if v == p {
			return true
		}
	}
	return false
}

// MemberStatus is the registration state of a fraternity member.
type MemberStatus string

const (
	MemberActive   MemberStatus = "Active"
	MemberInactive MemberStatus = "Inactive"
	MemberPending  MemberStatus = "Pending"
)

func (s MemberStatus) Valid() bool {
	return s == MemberActive || s == MemberInactive || s == MemberPending
}

/* =============================== Entities =============================== */

// Case is a legal-aid case record.
type Case struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CaseRef          string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"caseRef"`
	RequesterName    string     `gorm:"not null" json:"requesterName"`
	RequesterContact string     `json:"requesterContact"`
	Location         string     `json:"location,omitempty"`
	Description      string     `gorm:"type:text" json:"description"`
	Urgency          Urgency    `gorm:"type:varchar(10);not null" json:"urgency"`
	Status           CaseStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	SubmissionDate   string     `gorm:"type:varchar(10);not null" json:"submissionDate"`
	Program          Program    `gorm:"type:varchar(60);not null" json:"program"`
	CourtLevel       string     `json:"courtLevel,omitempty"`
	AssignedAdvocate string     `json:"assignedAdvocate,omitempty"`
	LatestUpdate     string     `gorm:"type:text" json:"latestUpdate,omitempty"`
	Archived         bool       `gorm:"not null;default:false;index" json:"archived"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	Files []CaseFile `json:"files,omitempty"`
}

func (Case) TableName() string { return "legal_aid_cases" }

func (c *Case) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CaseFile is a supporting document attached to a case.
type CaseFile struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID       uuid.UUID `gorm:"type:uuid;not null;index" json:"caseId"`
	Key          string    `gorm:"not null" json:"-"`
	Mime         string    `gorm:"not null" json:"mime"`
	Size         int       `gorm:"not null" json:"size"`
	OriginalName string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`

	Case Case `gorm:"foreignKey:CaseID;references:ID" json:"-"`
}

func (f *CaseFile) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// CaseHistory is an audit log entry for important case changes.
type CaseHistory struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"caseId"`
	ActorID   string     `gorm:"type:varchar(64);index" json:"actorId"` // profile id, empty for public intake
	ActorName string     `json:"actorName"`
	Action    string     `gorm:"type:varchar(50);not null" json:"action"` // created, status_changed, updated, archived, file_uploaded
	OldStatus CaseStatus `gorm:"type:varchar(20)" json:"oldStatus,omitempty"`
	NewStatus CaseStatus `gorm:"type:varchar(20)" json:"newStatus,omitempty"`
	Reason    string     `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (h *CaseHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// Visibility controls which member fields appear in the public directory.
type Visibility struct {
	PublicProfile  bool `json:"publicProfile"`
	Email          bool `json:"email"`
	Phone          bool `json:"phone"`
	Specialization bool `json:"specialization"`
	Location       bool `json:"location"`
}

// FullVisibility is the default for a member who never changed privacy settings.
func FullVisibility() Visibility {
	return Visibility{PublicProfile: true, Email: true, Phone: true, Specialization: true, Location: true}
}

// Member is a fraternity member profile.
type Member struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string       `gorm:"not null" json:"name"`
	Email          string       `gorm:"uniqueIndex;not null" json:"email"`
	Phone          string       `json:"phone"`
	Tier           Role         `gorm:"type:varchar(20);not null;index" json:"tier"`
	Specialization string       `json:"specialization"`
	Location       string       `json:"location"`
	Church         string       `json:"church"`
	Status         MemberStatus `gorm:"type:varchar(20);not null;default:'Active'" json:"status"`
	Joined         string       `json:"joined"`
	Visibility     Visibility   `gorm:"embedded;embeddedPrefix:visible_" json:"visibility"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

func (m *Member) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Record is one entry of the per-profile key/value store.
type Record struct {
	ProfileID string    `gorm:"type:varchar(64);primaryKey"`
	Key       string    `gorm:"column:record_key;type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

/* ============================ Stored documents ========================== */

// UserSession is the logged-in identity kept under the user key of a profile.
type UserSession struct {
	ProfileID string    `json:"profileId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Tier      Role      `json:"tier"`
	Dashboard string    `json:"dashboard"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRole is the author of a chat turn.
type ChatRole string

const (
	ChatUser      ChatRole = "user"
	ChatAssistant ChatRole = "assistant"
)

// Attachment is a file sent along with a user turn.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"` // base64
}

type ChatMessage struct {
	Role       ChatRole    `json:"role"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// ChatSession is one assistant conversation thread. Messages are append-only.
type ChatSession struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
}

// DailyUsage counts assistant usage for one calendar day.
type DailyUsage struct {
	Date    string `json:"date"`
	Queries int    `json:"queries"`
	Uploads int    `json:"uploads"`
}
