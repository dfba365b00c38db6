// Package assistant manages AI assistant chat sessions per profile.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uclf/legal-aid-portal/internal/llm"
	"github.com/uclf/legal-aid-portal/internal/store"
	"github.com/uclf/legal-aid-portal/internal/usage"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/metrics"
	"github.com/uclf/legal-aid-portal/pkg/models"
	"github.com/uclf/legal-aid-portal/pkg/sanitize"
)

// MaxAttachmentBytes is the largest document accepted by the assistant.
const MaxAttachmentBytes = 10 * 1024 * 1024

const (
	defaultTitle  = "New Consultation"
	documentTitle = "Document Review"
	titleLength   = 30
)

var (
	ErrSessionNotFound    = errors.New("chat session not found")
	ErrSessionBusy        = errors.New("chat session is waiting for a reply")
	ErrAttachmentTooLarge = errors.New("document not accepted: maximum size is 10MB")
	ErrEmptyMessage       = errors.New("message text or attachment is required")
)

// Generator produces the assistant reply for one user turn. It never fails.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userText string, att *models.Attachment) string
}

// Manager owns the session list and active session of every profile.
type Manager struct {
	store   store.Store
	usage   *usage.Enforcer
	gateway Generator
	clock   usage.Clock
	log     *logger.Logger

	locks store.Locks

	busyMu sync.Mutex
	busy   map[string]struct{}
}

func NewManager(s store.Store, u *usage.Enforcer, g Generator, clock usage.Clock, log *logger.Logger) *Manager {
	if clock == nil {
		clock = usage.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		store:   s,
		usage:   u,
		gateway: g,
		clock:   clock,
		log:     log,
		busy:    make(map[string]struct{}),
	}
}

// NewChatSession builds a session that opens with the welcome turn.
func (m *Manager) NewChatSession(title string) models.ChatSession {
	now := m.clock.Now().UTC()
	return models.ChatSession{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		Messages: []models.ChatMessage{{
			Role:      models.ChatAssistant,
			Text:      llm.WelcomeMessage,
			CreatedAt: now,
		}},
	}
}

/* ============================== Persistence ============================= */

func (m *Manager) load(ctx context.Context, profileID string) ([]models.ChatSession, string, error) {
	var sessions []models.ChatSession
	if _, err := store.GetJSON(ctx, m.store, profileID, store.KeyChats, &sessions); err != nil {
		return nil, "", err
	}
	active, err := m.store.Get(ctx, profileID, store.KeyActiveSession)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, "", err
	}
	return sessions, active, nil
}

func (m *Manager) saveSessions(ctx context.Context, profileID string, sessions []models.ChatSession) error {
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	return store.SetJSON(ctx, m.store, profileID, store.KeyChats, sessions)
}

func (m *Manager) saveActive(ctx context.Context, profileID, id string) error {
	if id == "" {
		return m.store.Remove(ctx, profileID, store.KeyActiveSession)
	}
	return m.store.Set(ctx, profileID, store.KeyActiveSession, id)
}

func indexOf(sessions []models.ChatSession, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}

/* =============================== Sessions =============================== */

// SessionList is every session, most recent first, plus the active id.
type SessionList struct {
	Sessions []models.ChatSession `json:"sessions"`
	ActiveID string               `json:"activeId"`
}

// ListSessions returns the stored sessions. The active id is empty when the
// stored one no longer exists.
func (m *Manager) ListSessions(ctx context.Context, profileID string) (SessionList, error) {
	unlock := m.locks.Lock(profileID)
	defer unlock()

	sessions, active, err := m.load(ctx, profileID)
	if err != nil {
		return SessionList{}, err
	}
	if indexOf(sessions, active) < 0 {
		active = ""
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	return SessionList{Sessions: sessions, ActiveID: active}, nil
}

// CreateSession prepends a new session and makes it active.
func (m *Manager) CreateSession(ctx context.Context, profileID string) (models.ChatSession, error) {
	unlock := m.locks.Lock(profileID)
	defer unlock()

	sessions, _, err := m.load(ctx, profileID)
	if err != nil {
		return models.ChatSession{}, err
	}
	s := m.NewChatSession(defaultTitle)
	if err := m.saveSessions(ctx, profileID, append([]models.ChatSession{s}, sessions...)); err != nil {
		return models.ChatSession{}, err
	}
	if err := m.saveActive(ctx, profileID, s.ID); err != nil {
		return models.ChatSession{}, err
	}
	return s, nil
}

// DeleteSession removes a session. When it was active the most recent
// remaining session becomes active, or none.
func (m *Manager) DeleteSession(ctx context.Context, profileID, id string) (activeID string, err error) {
	unlock := m.locks.Lock(profileID)
	defer unlock()

	sessions, active, err := m.load(ctx, profileID)
	if err != nil {
		return "", err
	}
	i := indexOf(sessions, id)
	if i < 0 {
		return "", ErrSessionNotFound
	}
	sessions = append(sessions[:i], sessions[i+1:]...)
	if err := m.saveSessions(ctx, profileID, sessions); err != nil {
		return "", err
	}

	if active == id || indexOf(sessions, active) < 0 {
		active = ""
		if len(sessions) > 0 {
			active = sessions[0].ID
		}
		if err := m.saveActive(ctx, profileID, active); err != nil {
			return "", err
		}
	}
	return active, nil
}

// ActivateSession marks an existing session active.
func (m *Manager) ActivateSession(ctx context.Context, profileID, id string) (models.ChatSession, error) {
	unlock := m.locks.Lock(profileID)
	defer unlock()

	sessions, _, err := m.load(ctx, profileID)
	if err != nil {
		return models.ChatSession{}, err
	}
	i := indexOf(sessions, id)
	if i < 0 {
		return models.ChatSession{}, ErrSessionNotFound
	}
	if err := m.saveActive(ctx, profileID, id); err != nil {
		return models.ChatSession{}, err
	}
	return sessions[i], nil
}

/* ================================= Send ================================= */

// SendInput is one user turn.
type SendInput struct {
	SessionID  string
	Text       string
	Attachment *models.Attachment
}

// SendResult carries the updated session and today's usage after the turn.
type SendResult struct {
	Session models.ChatSession `json:"session"`
	Reply   models.ChatMessage `json:"reply"`
	Usage   models.DailyUsage  `json:"usage"`
}

func busyKey(profileID, sessionID string) string { return profileID + "/" + sessionID }

func (m *Manager) markBusy(key string) bool {
	m.busyMu.Lock()
	defer m.busyMu.Unlock()
	if _, ok := m.busy[key]; ok {
		return false
	}
	m.busy[key] = struct{}{}
	return true
}

func (m *Manager) clearBusy(key string) {
	m.busyMu.Lock()
	delete(m.busy, key)
	m.busyMu.Unlock()
}

func (m *Manager) isBusy(key string) bool {
	m.busyMu.Lock()
	defer m.busyMu.Unlock()
	_, ok := m.busy[key]
	return ok
}

// Send appends the user turn, asks the gateway, and appends exactly one
// assistant turn. Quota is consumed before anything is written; a rejected
// send leaves sessions and counters untouched.
func (m *Manager) Send(ctx context.Context, profileID string, tier models.Role, in SendInput) (SendResult, error) {
	text := strings.TrimSpace(in.Text)
	att := in.Attachment
	if att != nil && att.Data == "" {
		att = nil
	}
	if text == "" && att == nil {
		return SendResult{}, ErrEmptyMessage
	}
	if att != nil && llm.DecodedSize(att) > MaxAttachmentBytes {
		return SendResult{}, ErrAttachmentTooLarge
	}

	session, used, err := m.beginTurn(ctx, profileID, tier, in.SessionID, text, att)
	if err != nil {
		return SendResult{}, err
	}
	key := busyKey(profileID, session.ID)
	defer m.clearBusy(key)

	replyText := m.gateway.Generate(ctx, llm.SystemPrompt, text, att)

	reply := models.ChatMessage{
		Role:      models.ChatAssistant,
		Text:      replyText,
		CreatedAt: m.clock.Now().UTC(),
	}
	session, err = m.appendReply(ctx, profileID, session, reply)
	if err != nil {
		return SendResult{}, err
	}
	metrics.AssistantMessagesTotal.WithLabelValues(string(tier), string(models.ChatAssistant)).Inc()

	return SendResult{Session: session, Reply: reply, Usage: used}, nil
}

// beginTurn checks the quota, resolves the target session and persists the user turn.
func (m *Manager) beginTurn(ctx context.Context, profileID string, tier models.Role, sessionID, text string, att *models.Attachment) (models.ChatSession, models.DailyUsage, error) {
	unlock := m.locks.Lock(profileID)
	defer unlock()

	sessions, active, err := m.load(ctx, profileID)
	if err != nil {
		return models.ChatSession{}, models.DailyUsage{}, err
	}

	target := sessionID
	if target == "" && indexOf(sessions, active) >= 0 {
		target = active
	}
	idx := -1
	if target != "" {
		if idx = indexOf(sessions, target); idx < 0 {
			return models.ChatSession{}, models.DailyUsage{}, ErrSessionNotFound
		}
		if m.isBusy(busyKey(profileID, target)) {
			return models.ChatSession{}, models.DailyUsage{}, ErrSessionBusy
		}
	}

	used, err := m.usage.CheckAndRecord(ctx, profileID, tier, true, att != nil)
	if err != nil {
		return models.ChatSession{}, used, err
	}

	if idx < 0 {
		title := sanitize.Truncate(text, titleLength)
		if title == "" {
			title = documentTitle
		}
		sessions = append([]models.ChatSession{m.NewChatSession(title)}, sessions...)
		idx = 0
	}

	s := &sessions[idx]
	if text != "" && !hasUserTurn(s) {
		s.Title = sanitize.Truncate(text, titleLength)
	}
	s.Messages = append(s.Messages, models.ChatMessage{
		Role:       models.ChatUser,
		Text:       text,
		Attachment: att,
		CreatedAt:  m.clock.Now().UTC(),
	})
	session := *s

	if err := m.saveSessions(ctx, profileID, sessions); err != nil {
		return models.ChatSession{}, used, fmt.Errorf("persist user turn: %w", err)
	}
	if session.ID != active {
		if err := m.saveActive(ctx, profileID, session.ID); err != nil {
			return models.ChatSession{}, used, err
		}
	}
	if !m.markBusy(busyKey(profileID, session.ID)) {
		return models.ChatSession{}, used, ErrSessionBusy
	}
	metrics.AssistantMessagesTotal.WithLabelValues(string(tier), string(models.ChatUser)).Inc()
	return session, used, nil
}

// appendReply stores the assistant turn on the session it was sent from.
// If that session was deleted meanwhile the reply is dropped.
func (m *Manager) appendReply(ctx context.Context, profileID string, session models.ChatSession, reply models.ChatMessage) (models.ChatSession, error) {
	unlock := m.locks.Lock(profileID)
	defer unlock()

	sessions, _, err := m.load(ctx, profileID)
	if err != nil {
		return session, err
	}
	i := indexOf(sessions, session.ID)
	if i < 0 {
		m.log.Warn("session deleted before reply arrived", zap.String("session_id", session.ID))
		session.Messages = append(session.Messages, reply)
		return session, nil
	}
	sessions[i].Messages = append(sessions[i].Messages, reply)
	if err := m.saveSessions(ctx, profileID, sessions); err != nil {
		return session, fmt.Errorf("persist reply: %w", err)
	}
	return sessions[i], nil
}

func hasUserTurn(s *models.ChatSession) bool {
	for _, msg := range s.Messages {
		if msg.Role == models.ChatUser {
			return true
		}
	}
	return false
}

/* ================================= Usage ================================ */

// Usage returns today's counters and the tier limits.
func (m *Manager) Usage(ctx context.Context, profileID string, tier models.Role) (usage.Snapshot, error) {
	return m.usage.Snapshot(ctx, profileID, tier)
}

// PrecheckAttachment validates a selected file without consuming quota.
func (m *Manager) PrecheckAttachment(ctx context.Context, profileID string, tier models.Role, size int) error {
	if size > MaxAttachmentBytes {
		return ErrAttachmentTooLarge
	}
	return m.usage.CheckUpload(ctx, profileID, tier)
}
