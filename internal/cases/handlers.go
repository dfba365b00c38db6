package cases

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uclf/legal-aid-portal/internal/auth"
	"github.com/uclf/legal-aid-portal/internal/middleware"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/models"
	"github.com/uclf/legal-aid-portal/pkg/sanitize"
	"github.com/uclf/legal-aid-portal/pkg/utils"
	"github.com/uclf/legal-aid-portal/pkg/validation"
)

const listSummaryLen = 160

// ===== DTOs =====

type TransitionRequest struct {
	Status   string `json:"status" validate:"required,casestatus"`
	Advocate string `json:"advocate" validate:"omitempty,max=120"`
}

type ArchiveRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type IntakeResponse struct {
	ID      uuid.UUID         `json:"id"`
	CaseRef string            `json:"caseRef"`
	Status  models.CaseStatus `json:"status"`
}

type PageCases struct {
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int64         `json:"total"`
	Pages    int           `json:"pages"`
	Items    []models.Case `json:"items"`
}

type TrackNotFound struct {
	Found   bool   `json:"found"`
	Message string `json:"message"`
}

type Handler struct {
	svc *Service
	log *logger.Logger
}

func NewHandler(svc *Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, log: log}
}

// actorFrom reads the caller identity; public routes yield the zero Actor.
func actorFrom(c *fiber.Ctx) utils.Actor {
	id, _ := c.Locals("profileID").(string)
	return utils.Actor{ProfileID: id, Name: auth.DisplayName(c)}
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid case id")
	}
	return id, nil
}

// fail maps service errors to HTTP responses.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return validation.Respond(c, ve.Fields)
	case errors.Is(err, ErrCaseNotFound):
		return fiber.NewError(fiber.StatusNotFound, "case not found")
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, "status transition not allowed")
	case errors.Is(err, ErrDocumentRejected):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	middleware.RequestLog(c, h.log).Error("case request failed", zap.String("path", c.Path()), zap.Error(err))
	return fiber.ErrInternalServerError
}

// Intake godoc
// @Summary      Submit a legal-aid application
// @Description  Public intake form. Creates a Pending case and returns its tracking reference.
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        payload  body  IntakeRequest  true  "Application"
// @Success      201  {object}  IntakeResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /cases [post]
func (h *Handler) Intake(c *fiber.Ctx) error {
	var in IntakeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	cs, err := h.svc.Intake(c.UserContext(), in, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(IntakeResponse{ID: cs.ID, CaseRef: cs.CaseRef, Status: cs.Status})
}

// Track godoc
// @Summary      Track an application
// @Description  Case-insensitive exact match on the reference; the contact is masked
// @Tags         cases
// @Produce      json
// @Param        ref  path  string  true  "Case reference, e.g. UCLF-2024-8192"
// @Success      200  {object}  TrackView
// @Failure      404  {object}  TrackNotFound
// @Router       /cases/track/{ref} [get]
func (h *Handler) Track(c *fiber.Ctx) error {
	view, err := h.svc.Track(c.UserContext(), c.Params("ref"))
	if errors.Is(err, ErrCaseNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(TrackNotFound{
			Found:   false,
			Message: "No case matches that reference number.",
		})
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(view)
}

// List godoc
// @Summary      List cases
// @Description  Staff case list, most recent first
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        search    query string false "ref or requester name"
// @Param        filter    query string false "all|assigned|pending|urgent|mine"
// @Success      200  {object}  PageCases
// @Failure      400  {object}  models.ErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Router       /cases [get]
func (h *Handler) List(c *fiber.Ctx) error {
	page, size := parsePage(c)
	filter, ok := ParseFilter(c.Query("filter"))
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "filter must be all, assigned, pending, urgent or mine")
	}

	items, total, err := h.svc.List(c.UserContext(), ListQuery{
		Page:     page,
		PageSize: size,
		Search:   c.Query("search"),
		Filter:   filter,
		Advocate: auth.DisplayName(c),
		Archived: c.QueryBool("archived", false),
	})
	if err != nil {
		return h.fail(c, err)
	}
	// listings carry a short description; the detail view has the full text
	for i := range items {
		items[i].Description = sanitize.Summary(sanitize.RedactPII(items[i].Description), listSummaryLen)
	}

	return c.JSON(PageCases{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items,
	})
}

// Get godoc
// @Summary      Case detail
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cs, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cs)
}

// Transition godoc
// @Summary      Change case status
// @Description  Forward-only: Pending, Assigned, In Progress, Resolved; Closed from any open state
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "case id (uuid)"
// @Param        payload  body  TransitionRequest  true  "Target status"
// @Success      200  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /cases/{id}/status [patch]
func (h *Handler) Transition(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in TransitionRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	cs, err := h.svc.Transition(c.UserContext(), id, models.CaseStatus(in.Status), in.Advocate, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cs)
}

// Update godoc
// @Summary      Edit case details
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "case id (uuid)"
// @Param        payload  body  UpdateRequest  true  "Fields to change"
// @Success      200  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	cs, err := h.svc.Update(c.UserContext(), id, in, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cs)
}

// Archive godoc
// @Summary      Archive a case
// @Description  Hidden from staff listings, still trackable by reference
// @Tags         cases
// @Security     BearerAuth
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/archive [post]
func (h *Handler) Archive(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ArchiveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	cs, err := h.svc.Archive(c.UserContext(), id, in.Reason, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cs)
}

// History godoc
// @Summary      Case audit trail
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {array}   models.CaseHistory
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/history [get]
func (h *Handler) History(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	list, err := h.svc.History(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}
