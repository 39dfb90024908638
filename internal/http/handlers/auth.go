package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farmlink/farmhub/internal/auth"
	"github.com/farmlink/farmhub/internal/config"
	"github.com/farmlink/farmhub/internal/domain/user"
	"github.com/farmlink/farmhub/internal/observability"
	"github.com/farmlink/farmhub/internal/repo/postgres"
	"github.com/farmlink/farmhub/internal/security"
	"github.com/gin-gonic/gin"
)

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
}

// CredentialAuthenticator is the login half of the strategy pair.
type CredentialAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (user.User, error)
}

type AuthHandler struct {
	userWriter UserWriter
	creds      CredentialAuthenticator
	jwt        *auth.Manager
	prom       *observability.Prom
}

func NewAuthHandler(userWriter UserWriter, creds CredentialAuthenticator, jwtManager *auth.Manager, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{
		userWriter: userWriter,
		creds:      creds,
		jwt:        jwtManager,
		prom:       prom,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		h.prom.CountAuth("register", "error")
		RespondInternal(ctx, "Could not create user")
		return
	}

	// duplicates lose at the unique constraint, not at a prior lookup

	_, err = h.userWriter.Create(cctx, req.Email, hash, req.Name, user.DefaultRole)

	if err != nil {
		if errors.Is(err, postgres.ErrEmailTaken) {
			h.prom.CountAuth("register", "rejected")
			RespondError(ctx, http.StatusBadRequest, "email_taken", "User already exists", nil)
			return
		}

		h.prom.CountAuth("register", "error")
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.prom.CountAuth("register", "ok")

	// no token here; the client logs in separately
	ctx.JSON(http.StatusOK, gin.H{
		"msg": "User registered successfully",
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.creds.Authenticate(cctx, req.Email, req.Password)

	if err != nil {
		h.prom.CountAuth("login", "rejected")

		// one status for both failure modes, message text differs
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			RespondError(ctx, http.StatusBadRequest, "login_failed", "User not found", nil)
		case errors.Is(err, auth.ErrWrongPassword):
			RespondError(ctx, http.StatusBadRequest, "login_failed", "Wrong password", nil)
		default:
			RespondError(ctx, http.StatusBadRequest, "login_failed", "Login failed", nil)
		}
		return
	}

	token, err := h.jwt.IssueToken(foundUser.ID)

	if err != nil {
		h.prom.CountAuth("login", "error")
		RespondInternal(ctx, "Could not generate token")
		return
	}

	h.prom.CountAuth("login", "ok")

	ctx.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"name":  foundUser.Name,
			"email": foundUser.Email,
		},
	})
}
