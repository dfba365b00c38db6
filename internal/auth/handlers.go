package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uclf/legal-aid-portal/internal/store"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/models"
	"github.com/uclf/legal-aid-portal/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /login. Credentials are not verified: the caller picks a tier.
type LoginRequest struct {
	Tier  string `json:"tier" validate:"required,tier"`
	Name  string `json:"name" validate:"omitempty,min=2,max=80"`
	Email string `json:"email" validate:"omitempty,email,max=120"`
}

// Standard auth response
type AuthResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      models.UserSession `json:"user"`
}

/* ============================== Handler ================================= */

type Handler struct {
	store  store.Store
	tokens *Tokens
	log    *logger.Logger
}

func NewHandler(s store.Store, t *Tokens, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{store: s, tokens: t, log: log}
}

// DefaultName is the display name used when login carries none.
func DefaultName(tier models.Role) string {
	switch tier {
	case models.RoleAdmin:
		return "System Administrator"
	case models.RoleStudent:
		return "Student Member"
	case models.RoleAssociate:
		return "Associate Member"
	case models.RoleFullMember:
		return "Counsel Advocate"
	case models.RoleGuest:
		return "Guest"
	}
	return "Guest"
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Start a session for the selected membership tier and receive a JWT.
// @Description  A valid Bearer token keeps the caller's profile, usage and chats.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	tier, _ := models.ParseRole(in.Tier)

	if in.Name == "" {
		in.Name = DefaultName(tier)
	}
	if in.Email == "" {
		in.Email = tier.Slug() + "@uclf.org.ug"
	}

	// a caller presenting a valid token keeps its profile
	profileID, _, known := Caller(c)
	if !known {
		profileID = uuid.NewString()
	}

	sess := models.UserSession{
		ProfileID: profileID,
		Name:      in.Name,
		Email:     in.Email,
		Tier:      tier,
		Dashboard: tier.Dashboard(),
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SetJSON(c.UserContext(), h.store, sess.ProfileID, store.KeyUser, sess); err != nil {
		h.log.Error("persist user session", zap.Error(err))
		return fiber.ErrInternalServerError
	}

	token, exp, err := h.tokens.Issue(sess.ProfileID, tier, sess.Name)
	if err != nil {
		h.log.Error("sign token", zap.Error(err))
		return fiber.ErrInternalServerError
	}

	h.log.Info("login", zap.String("profile_id", sess.ProfileID), zap.String("tier", string(tier)), zap.Bool("returning", known))
	return c.JSON(AuthResponse{Token: token, ExpiresAt: exp, User: sess})
}

/* ================================ Logout ================================ */

// @Summary      Logout
// @Description  Remove the stored user session of the caller
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Router       /logout [post]
func (h *Handler) Logout(c *fiber.Ctx) error {
	profileID := MustProfileID(c)
	if err := h.store.Remove(c.UserContext(), profileID, store.KeyUser); err != nil {
		return fiber.ErrInternalServerError
	}
	return c.SendStatus(fiber.StatusNoContent)
}

/* ================================= Me =================================== */

// @Summary      Get current user
// @Description  Return the stored session of the authenticated profile
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  models.UserSession
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	sess, err := CurrentSession(c, h.store)
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

// CurrentSession loads the caller's stored UserSession. A profile that logged
// out keeps a valid token but has no session, which reads as 401.
func CurrentSession(c *fiber.Ctx, s store.Store) (models.UserSession, error) {
	var sess models.UserSession
	found, err := store.GetJSON(c.UserContext(), s, MustProfileID(c), store.KeyUser, &sess)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return sess, fiber.ErrUnauthorized
		}
		return sess, fiber.ErrInternalServerError
	}
	if !found {
		return sess, fiber.ErrUnauthorized
	}
	return sess, nil
}
