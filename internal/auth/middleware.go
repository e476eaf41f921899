package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/annotator/internal/config"
	"github.com/mrlokans/annotator/internal/entities"
)

// Context keys for user data
const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUsername = "auth_username"
	ContextKeyRole     = "auth_role"
	ContextKeyAuthType = "auth_type"
)

type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// TokenValidator resolves bearer tokens. *Service implements it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*entities.User, error)
}

// UserLoader loads session users. *Service implements it.
type UserLoader interface {
	GetUserByID(ctx context.Context, id uint) (*entities.User, error)
}

type Middleware struct {
	tokens      TokenValidator
	users       UserLoader
	sessions    *SessionManager
	mode        config.AuthMode
	publicPaths map[string]bool
}

func NewMiddleware(service *Service, sessions *SessionManager, cfg config.Auth) *Middleware {
	return &Middleware{
		tokens:   service,
		users:    service,
		sessions: sessions,
		mode:     cfg.Mode,
		publicPaths: map[string]bool{
			"/health":  true,
			"/ping":    true,
			"/metrics": true,
			"/login":   true,
			"/setup":   true,
		},
	}
}

// Handler authenticates the request. In "none" mode every request passes
// anonymously.
func (m *Middleware) Handler() gin.HandlerFunc {
	if m.mode != config.AuthModeLocal {
		return func(c *gin.Context) {
			c.Set(ContextKeyAuthType, AuthTypeNone)
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if user := m.tryBearerAuth(c); user != nil {
			setUserContext(c, user, AuthTypeBearer)
			c.Next()
			return
		}
		if user := m.trySessionAuth(c); user != nil {
			setUserContext(c, user, AuthTypeSession)
			c.Next()
			return
		}

		if m.publicPaths[c.Request.URL.Path] {
			c.Set(ContextKeyAuthType, AuthTypeNone)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (m *Middleware) tryBearerAuth(c *gin.Context) *entities.User {
	token := bearerToken(c)
	if token == "" {
		return nil
	}
	user, err := m.tokens.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	return user
}

func (m *Middleware) trySessionAuth(c *gin.Context) *entities.User {
	if m.sessions == nil {
		return nil
	}
	userID := m.sessions.GetUserID(c.Request)
	if userID == 0 {
		return nil
	}
	user, err := m.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		return nil
	}
	return user
}

func setUserContext(c *gin.Context, user *entities.User, authType AuthType) {
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyUsername, user.Username)
	c.Set(ContextKeyRole, user.Role)
	c.Set(ContextKeyAuthType, authType)
}

// RequireUser rejects anonymous requests in local mode.
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.mode == config.AuthModeLocal && GetUserID(c) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireRole passes only the listed roles. It is a no-op outside local
// mode.
func (m *Middleware) RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	allowed := make(map[entities.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if m.mode != config.AuthModeLocal {
			c.Next()
			return
		}
		if !allowed[GetUserRole(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// RequireWrite passes roles that may modify the dataset.
func (m *Middleware) RequireWrite() gin.HandlerFunc {
	return m.RequireRole(entities.UserRoleAdmin, entities.UserRoleEditor)
}

func GetUserID(c *gin.Context) uint {
	if id, ok := c.Get(ContextKeyUserID); ok {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}

func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}

func GetUserRole(c *gin.Context) entities.UserRole {
	if r, ok := c.Get(ContextKeyRole); ok {
		if role, ok := r.(entities.UserRole); ok {
			return role
		}
	}
	return ""
}

func GetAuthType(c *gin.Context) AuthType {
	if t, ok := c.Get(ContextKeyAuthType); ok {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}

// Actor is the name recorded as creator or editor of dataset rows. It is
// empty for anonymous requests.
func Actor(c *gin.Context) string {
	return GetUsername(c)
}
