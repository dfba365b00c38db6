package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/uclf/legal-aid-portal/internal/store"
	"github.com/uclf/legal-aid-portal/pkg/models"
)

/* ============================== JWT Claims ============================== */

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub  string `json:"sub"`  // profile ID
	Tier string `json:"tier"` // membership tier
	Name string `json:"name"`
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// Tokens signs and verifies session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a JWT for the given profile, tier and display name.
func (t *Tokens) Issue(profileID string, tier models.Role, name string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := &Claims{
		Sub:  profileID,
		Tier: string(tier),
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(t.secret)
	return s, exp, err
}

// Parse verifies a token string and returns its claims.
func (t *Tokens) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fiber.ErrUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Sub == "" {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

/* ============================== Middleware ============================== */

// RequireSession validates a Bearer JWT, injects profileID, tier and name into
// the context and requires the stored session: the profile must still be
// logged in, with the tier the token was issued for.
func RequireSession(t *Tokens, s store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		if err := t.authenticate(c, strings.TrimPrefix(h, "Bearer ")); err != nil {
			return err
		}
		sess, err := CurrentSession(c, s)
		if err != nil {
			return err
		}
		if sess.Tier != MustTier(c) {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	}
}

// OptionalAuth injects the caller when a valid Bearer token is present and
// lets anonymous requests through. A bad token is still rejected.
func OptionalAuth(t *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return c.Next()
		}
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		if err := t.authenticate(c, strings.TrimPrefix(h, "Bearer ")); err != nil {
			return err
		}
		return c.Next()
	}
}

// Identify is OptionalAuth for /login: an invalid or expired token is ignored
// and the request continues anonymously.
func Identify(t *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if h := c.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			_ = t.authenticate(c, strings.TrimPrefix(h, "Bearer "))
		}
		return c.Next()
	}
}

func (t *Tokens) authenticate(c *fiber.Ctx, raw string) error {
	claims, err := t.Parse(raw)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	tier, ok := models.ParseRole(claims.Tier)
	if !ok {
		return fiber.ErrUnauthorized
	}
	c.Locals("profileID", claims.Sub)
	c.Locals("tier", tier)
	c.Locals("name", claims.Name)
	return nil
}

// Caller returns the profile and tier when the request is authenticated.
func Caller(c *fiber.Ctx) (profileID string, tier models.Role, ok bool) {
	profileID, _ = c.Locals("profileID").(string)
	tier, ok = c.Locals("tier").(models.Role)
	return profileID, tier, ok && profileID != ""
}

// MustProfileID reads the authenticated profile ID from context or panics (programming error).
func MustProfileID(c *fiber.Ctx) string {
	if v, ok := c.Locals("profileID").(string); ok && v != "" {
		return v
	}
	panic(errors.New("profile not in context"))
}

// MustTier reads the authenticated tier from context or panics (programming error).
func MustTier(c *fiber.Ctx) models.Role {
	if v, ok := c.Locals("tier").(models.Role); ok {
		return v
	}
	panic(errors.New("tier not in context"))
}

// DisplayName is the caller's name, empty when not set.
func DisplayName(c *fiber.Ctx) string {
	v, _ := c.Locals("name").(string)
	return v
}

// RequireRole ensures the authenticated tier is one of roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tier := MustTier(c)
		for _, r := range roles {
			if tier == r {
				return c.Next()
			}
		}
		return fiber.ErrForbidden
	}
}

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorHandler is a global Fiber error handler that returns a consistent JSON shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// Defaults
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	// Fiber errors carry status codes
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		if strings.TrimSpace(e.Message) != "" {
			msg = e.Message
		} else {
			msg = fiber.ErrInternalServerError.Message
			switch code {
			case fiber.StatusBadRequest:
				msg = fiber.ErrBadRequest.Message
			case fiber.StatusUnauthorized:
				msg = fiber.ErrUnauthorized.Message
			case fiber.StatusForbidden:
				msg = fiber.ErrForbidden.Message
			case fiber.StatusNotFound:
				msg = fiber.ErrNotFound.Message
			case fiber.StatusConflict:
				msg = fiber.ErrConflict.Message
			}
		}
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Code:    httpCodeToString(code),
		Error:   true,
		Message: msg,
	})
}
