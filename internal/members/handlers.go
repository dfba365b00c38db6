package members

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uclf/legal-aid-portal/internal/auth"
	"github.com/uclf/legal-aid-portal/internal/middleware"
	"github.com/uclf/legal-aid-portal/internal/store"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/models"
	"github.com/uclf/legal-aid-portal/pkg/validation"
)

type PageMembers struct {
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Total    int64           `json:"total"`
	Pages    int             `json:"pages"`
	Items    []models.Member `json:"items"`
}

type Handler struct {
	svc   *Service
	store store.Store
	log   *logger.Logger
}

func NewHandler(svc *Service, s store.Store, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, store: s, log: log}
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return
}

// parseTier reads an optional tier filter; "" and "All" mean every tier.
func parseTier(s string) (models.Role, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return "", nil
	}
	t, ok := models.ParseRole(s)
	if !ok {
		return "", fiber.NewError(fiber.StatusBadRequest, "unknown tier")
	}
	return t, nil
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return validation.Respond(c, ve.Fields)
	case errors.Is(err, ErrMemberNotFound):
		return fiber.NewError(fiber.StatusNotFound, "member not found")
	case errors.Is(err, ErrEmailTaken):
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}
	middleware.RequestLog(c, h.log).Error("member request failed", zap.String("path", c.Path()), zap.Error(err))
	return fiber.ErrInternalServerError
}

// viewer resolves the logged-in caller for the directory, nil when anonymous.
func (h *Handler) viewer(c *fiber.Ctx) (*Viewer, error) {
	pid, tier, ok := auth.Caller(c)
	if !ok {
		return nil, nil
	}
	var sess models.UserSession
	if _, err := store.GetJSON(c.UserContext(), h.store, pid, store.KeyUser, &sess); err != nil {
		return nil, err
	}
	priv, err := h.svc.Privacy(c.UserContext(), pid, tier)
	if err != nil {
		return nil, err
	}
	name := sess.Name
	if name == "" {
		name = auth.DisplayName(c)
	}
	return &Viewer{Name: name, Email: sess.Email, Privacy: priv}, nil
}

// Directory godoc
// @Summary      Member directory
// @Description  Members who opted into the public registry; hidden fields are omitted
// @Tags         members
// @Produce      json
// @Param        search  query string false "name, location or specialization"
// @Param        tier    query string false "Guest|Student|Associate|Full Member|Admin|All"
// @Success      200  {array}   Entry
// @Failure      400  {object}  models.ErrorResponse
// @Router       /members [get]
func (h *Handler) Directory(c *fiber.Ctx) error {
	tier, err := parseTier(c.Query("tier"))
	if err != nil {
		return err
	}
	v, err := h.viewer(c)
	if err != nil {
		return h.fail(c, err)
	}
	list, err := h.svc.Directory(c.UserContext(), c.Query("search"), tier, v)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

// GetPrivacy godoc
// @Summary      My directory privacy
// @Tags         members
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  models.Visibility
// @Router       /me/privacy [get]
func (h *Handler) GetPrivacy(c *fiber.Ctx) error {
	vis, err := h.svc.Privacy(c.UserContext(), auth.MustProfileID(c), auth.MustTier(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(vis)
}

// PutPrivacy godoc
// @Summary      Update my directory privacy
// @Tags         members
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  models.Visibility  true  "Visibility flags"
// @Success      200  {object}  models.Visibility
// @Router       /me/privacy [put]
func (h *Handler) PutPrivacy(c *fiber.Ctx) error {
	var vis models.Visibility
	if err := c.BodyParser(&vis); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if err := h.svc.SetPrivacy(c.UserContext(), auth.MustProfileID(c), auth.MustTier(c), vis); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(vis)
}

// Register godoc
// @Summary      Register a member
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  RegisterRequest  true  "Member"
// @Success      201  {object}  models.Member
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /admin/members [post]
func (h *Handler) Register(c *fiber.Ctx) error {
	var in RegisterRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	m, err := h.svc.Register(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// List godoc
// @Summary      Member registry
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        search    query string false "name, email or location"
// @Param        tier      query string false "tier"
// @Param        status    query string false "Active|Inactive|Pending"
// @Success      200  {object}  PageMembers
// @Router       /admin/members [get]
func (h *Handler) List(c *fiber.Ctx) error {
	page, size := parsePage(c)
	tier, err := parseTier(c.Query("tier"))
	if err != nil {
		return err
	}
	status := models.MemberStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "status must be Active, Inactive or Pending")
	}

	items, total, err := h.svc.List(c.UserContext(), AdminQuery{
		Page: page, PageSize: size, Search: c.Query("search"), Tier: tier, Status: status,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(PageMembers{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items,
	})
}

// SetStatus godoc
// @Summary      Change member status
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "member id (uuid)"
// @Param        payload  body  StatusRequest  true  "Status"
// @Success      200  {object}  models.Member
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/members/{id}/status [patch]
func (h *Handler) SetStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid member id")
	}
	var in StatusRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	m, err := h.svc.SetStatus(c.UserContext(), id, models.MemberStatus(in.Status))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(m)
}
