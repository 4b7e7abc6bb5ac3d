package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	redis_v9 "github.com/redis/go-redis/v9"
)

// Permission codes enforced on the protected routes.
const (
	ReadSettingsPermission   = "settings.read"
	UpdateSettingsPermission = "settings.update"
	ReadDashboardPermission  = "dashboard.read"
	TriggerSyncPermission    = "mdm.sync"
	ReadPricesPermission     = "mdm.prices.read"
)

// Locals keys set by AuthRequired for downstream handlers.
const (
	LocalUserID      = "userId"
	LocalPermissions = "permissions"
)

type Claims struct {
	jwt.RegisteredClaims
	Id          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
}

type Session struct {
	UserID      string   `json:"userId"`
	Permissions []string `json:"permissions"`
	ExpiresAt   int64    `json:"expiresAt"`
}

// AuthService verifies bearer tokens and resolves their session from
// Redis. Either layer failing yields 401; this service never talks to
// the auth service directly.
type AuthService struct {
	secretKey []byte
	redis     *redis_v9.Client
}

func NewAuthService(jwtSecret string, redisClient *redis_v9.Client) *AuthService {
	return &AuthService{
		secretKey: []byte(jwtSecret),
		redis:     redisClient,
	}
}

func (s *AuthService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	raw, err := s.redis.Get(ctx, token).Bytes()
	if err != nil {
		return nil, fmt.Errorf("error retrieving session: %w", err)
	}

	session := &Session{}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("error decoding session: %w", err)
	}
	return session, nil
}

// AuthRequired validates the bearer token and stores the user identity
// in the request locals. Gateways that already resolved the user may
// pass X-User-ID / X-User-Permissions instead.
func AuthRequired(auth *AuthService) fiber.Handler {
	return func(c fiber.Ctx) error {
		if uid := c.Get("X-User-ID"); uid != "" {
			c.Locals(LocalUserID, uid)
			c.Locals(LocalPermissions, strings.Split(c.Get("X-User-Permissions"), ","))
			return c.Next()
		}

		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := auth.VerifyToken(token)
		if err != nil {
			log.Printf("Token verification failed from %s: %v", c.IP(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		session, err := auth.GetSession(ctx, token)
		if err != nil {
			log.Printf("Session lookup failed for user %s: %v", claims.Id, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(LocalUserID, session.UserID)
		c.Locals(LocalPermissions, session.Permissions)
		return c.Next()
	}
}

// PermissionRequired guards a route with a permission code. Admin and
// manager roles short-circuit the check.
func PermissionRequired(requiredPermission string) fiber.Handler {
	return func(c fiber.Ctx) error {
		permissions, _ := c.Locals(LocalPermissions).([]string)

		hasPermission := false
		for _, perm := range permissions {
			if perm == requiredPermission || strings.HasPrefix(perm, "admin") || strings.HasPrefix(perm, "manager") {
				hasPermission = true
				break
			}
		}

		if !hasPermission {
			log.Println("Permission denied from", c.IP(), "Calling", c.Method(), "Request", c.OriginalURL())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id from the request locals, or
// empty when the request is anonymous.
func UserID(c fiber.Ctx) string {
	uid, _ := c.Locals(LocalUserID).(string)
	return uid
}
