package assistant

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/uclf/legal-aid-portal/internal/auth"
	"github.com/uclf/legal-aid-portal/internal/middleware"
	"github.com/uclf/legal-aid-portal/internal/usage"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/models"
	"github.com/uclf/legal-aid-portal/pkg/validation"
)

/* ================================ DTOs ================================= */

type SendMessageRequest struct {
	SessionID  string             `json:"sessionId" validate:"omitempty,max=64"`
	Text       string             `json:"text" validate:"max=8000"`
	Attachment *AttachmentPayload `json:"attachment"`
}

type AttachmentPayload struct {
	Name string `json:"name" validate:"required,max=255"`
	Type string `json:"type" validate:"max=100"`
	Data string `json:"data" validate:"required"`
}

type PrecheckRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Size int    `json:"size" validate:"min=0"`
}

type PrecheckResponse struct {
	Accepted bool `json:"accepted"`
}

/* ============================== Handler ================================= */

type Handler struct {
	mgr *Manager
	log *logger.Logger
}

func NewHandler(m *Manager, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{mgr: m, log: log}
}

// @Summary      List assistant sessions
// @Tags         assistant
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  SessionList
// @Router       /assistant/sessions [get]
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	out, err := h.mgr.ListSessions(c.UserContext(), auth.MustProfileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

// @Summary      Start a new consultation
// @Tags         assistant
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  models.ChatSession
// @Router       /assistant/sessions [post]
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	s, err := h.mgr.CreateSession(c.UserContext(), auth.MustProfileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s)
}

// @Summary      Delete a session
// @Tags         assistant
// @Security     BearerAuth
// @Param        id   path  string  true  "Session ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  models.ErrorResponse
// @Router       /assistant/sessions/{id} [delete]
func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	active, err := h.mgr.DeleteSession(c.UserContext(), auth.MustProfileID(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"activeId": active})
}

// @Summary      Switch the active session
// @Tags         assistant
// @Security     BearerAuth
// @Param        id   path  string  true  "Session ID"
// @Success      200  {object}  models.ChatSession
// @Failure      404  {object}  models.ErrorResponse
// @Router       /assistant/sessions/{id}/activate [post]
func (h *Handler) ActivateSession(c *fiber.Ctx) error {
	s, err := h.mgr.ActivateSession(c.UserContext(), auth.MustProfileID(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(s)
}

// @Summary      Send a message to the assistant
// @Description  Consumes one query (and one upload when a document is attached) from today's quota
// @Tags         assistant
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  SendMessageRequest  true  "Message"
// @Success      200  {object}  SendResult
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "reply still pending"
// @Failure      413  {object}  models.ErrorResponse
// @Failure      429  {object}  models.QuotaErrorResponse
// @Router       /assistant/messages [post]
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var in SendMessageRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	send := SendInput{SessionID: in.SessionID, Text: in.Text}
	if in.Attachment != nil {
		send.Attachment = &models.Attachment{
			Name: in.Attachment.Name,
			Type: in.Attachment.Type,
			Data: in.Attachment.Data,
		}
	}

	res, err := h.mgr.Send(c.UserContext(), auth.MustProfileID(c), auth.MustTier(c), send)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

// @Summary      Check whether a document may be attached
// @Description  Validates size and today's upload allowance without consuming it
// @Tags         assistant
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  PrecheckRequest  true  "Selected file"
// @Success      200  {object}  PrecheckResponse
// @Failure      413  {object}  models.ErrorResponse
// @Failure      429  {object}  models.QuotaErrorResponse
// @Router       /assistant/attachments [post]
func (h *Handler) PrecheckAttachment(c *fiber.Ctx) error {
	var in PrecheckRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if err := h.mgr.PrecheckAttachment(c.UserContext(), auth.MustProfileID(c), auth.MustTier(c), in.Size); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(PrecheckResponse{Accepted: true})
}

// @Summary      Today's assistant usage
// @Tags         assistant
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  usage.Snapshot
// @Router       /assistant/usage [get]
func (h *Handler) Usage(c *fiber.Ctx) error {
	snap, err := h.mgr.Usage(c.UserContext(), auth.MustProfileID(c), auth.MustTier(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(snap)
}

/* ============================ Error mapping ============================= */

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var qe *usage.QuotaError
	switch {
	case errors.As(err, &qe):
		return c.Status(fiber.StatusTooManyRequests).JSON(models.QuotaErrorResponse{
			Error:   true,
			Code:    "QUOTA_EXCEEDED",
			Kind:    string(qe.Kind),
			Message: qe.Message(),
			Limits: models.QuotaLimits{
				Queries: qe.Limits.Queries,
				Uploads: qe.Limits.Uploads,
				Label:   qe.Limits.Label,
			},
			Usage:   qe.Usage,
			Upgrade: usage.CanUpgrade(qe.Tier),
		})
	case errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	case errors.Is(err, ErrSessionBusy):
		return fiber.NewError(fiber.StatusConflict, "the assistant is still answering in this session")
	case errors.Is(err, ErrAttachmentTooLarge):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Document not accepted. Maximum size is 10MB.")
	case errors.Is(err, ErrEmptyMessage):
		return validation.Respond(c, map[string][]string{"text": {"Type a question or attach a document"}})
	}
	middleware.RequestLog(c, h.log).Error("assistant request failed", zap.String("path", c.Path()), zap.Error(err))
	return fiber.ErrInternalServerError
}
