package auth

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/annotator/internal/config"
	"github.com/mrlokans/annotator/internal/entities"
)

type credentials struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Controller serves the login, setup and API token endpoints.
type Controller struct {
	service     *Service
	sessions    *SessionManager
	rateLimiter *RateLimiter
	// setupMu serializes first-user creation.
	setupMu sync.Mutex
}

func NewController(service *Service, sessions *SessionManager, cfg config.Auth) *Controller {
	return &Controller{
		service:  service,
		sessions: sessions,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			LockoutDuration: cfg.LockoutDuration,
		}),
	}
}

// Stop releases the rate limiter's cleanup goroutine.
func (ac *Controller) Stop() {
	ac.rateLimiter.Stop()
}

func (ac *Controller) RegisterRoutes(router gin.IRoutes, mw *Middleware) {
	router.POST("/setup", ac.Setup)
	router.POST("/login", ac.Login)
	router.POST("/logout", ac.Logout)
	router.GET("/api/auth/me", mw.RequireUser(), ac.Me)
	router.POST("/api/auth/token", mw.RequireUser(), ac.GenerateToken)
	router.DELETE("/api/auth/token", mw.RequireUser(), ac.RevokeToken)
}

// Setup creates the first user as admin. It is refused once any user
// exists.
func (ac *Controller) Setup(c *gin.Context) {
	ac.setupMu.Lock()
	defer ac.setupMu.Unlock()

	ctx := c.Request.Context()
	hasUsers, err := ac.service.HasUsers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if hasUsers {
		c.JSON(http.StatusConflict, gin.H{"error": "setup already completed"})
		return
	}

	var req credentials
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := ac.service.CreateUser(ctx, req.Username, req.Email, req.Password, entities.UserRoleAdmin)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case isInputError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		}
		return
	}

	if ac.sessions != nil {
		_ = ac.sessions.CreateSession(c.Request, user)
	}
	c.JSON(http.StatusCreated, user)
}

func isInputError(err error) bool {
	for _, target := range []error{
		ErrUsernameRequired, ErrUsernameInvalid, ErrEmailRequired, ErrEmailInvalid,
		ErrPasswordRequired, ErrPasswordTooShort, ErrPasswordTooLong, ErrInvalidRole,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (ac *Controller) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBind(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ip := c.ClientIP()
	if allowed, retryAfter := ac.rateLimiter.Allow(ip, req.Username); !allowed {
		c.Header("Retry-After", retryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
		return
	}

	user, err := ac.service.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		ac.rateLimiter.RecordFailure(ip, req.Username)
		if errors.Is(err, ErrAccountLocked) {
			c.JSON(http.StatusLocked, gin.H{"error": "account is locked, try again later"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	ac.rateLimiter.RecordSuccess(ip, req.Username)

	if ac.sessions != nil {
		if err := ac.sessions.CreateSession(c.Request, user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}
	c.JSON(http.StatusOK, user)
}

func (ac *Controller) Logout(c *gin.Context) {
	if ac.sessions != nil {
		_ = ac.sessions.DestroySession(c.Request)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (ac *Controller) Me(c *gin.Context) {
	user, err := ac.service.GetUserByID(c.Request.Context(), GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GenerateToken issues a new API token for the current user, replacing
// any previous one.
func (ac *Controller) GenerateToken(c *gin.Context) {
	token, err := ac.service.GenerateToken(c.Request.Context(), GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Store this token securely - it will not be shown again",
	})
}

func (ac *Controller) RevokeToken(c *gin.Context) {
	if err := ac.service.RevokeToken(c.Request.Context(), GetUserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}
