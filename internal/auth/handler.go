package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/ycchuang/org-management/internal"
	userDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/user"
	"github.com/ycchuang/org-management/internal/transport"
	"github.com/ycchuang/org-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// UserResponse is the sanitized user payload returned by profile endpoints.
type UserResponse struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           *string `json:"phone,omitempty"`
	EmployeeID      *string `json:"employee_id,omitempty"`
	IsActive        bool    `json:"is_active"`
	EmailVerifiedAt *string `json:"email_verified_at"`
	CreatedAt       string  `json:"created_at"`
}

func toUserResponse(u *userDatamodel.User) UserResponse {
	resp := UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		EmployeeID: u.EmployeeID,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
	}
	if u.EmailVerifiedAt != nil {
		verified := u.EmailVerifiedAt.Format(time.RFC3339)
		resp.EmailVerifiedAt = &verified
	}
	return resp
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusCreated, "registration successful, please verify your email", toUserResponse(user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteResult(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Logout(r.Context()); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "logged out", nil)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if appErr := dto.Validate(); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	tokens, err := h.Service.Refresh(r.Context(), dto.RefreshToken)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteResult(w, http.StatusOK, tokens)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.Me(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteResult(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteAppError(w, internal.ErrInvalidVerificationLink)
		return
	}
	hash := chi.URLParam(r, "hash")

	if err := h.Service.VerifyEmail(r.Context(), userID, hash); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "email verified", nil)
}

func (h *Handler) ResendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var dto ResendVerificationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if appErr := dto.Validate(); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	if err := h.Service.ResendVerificationEmail(r.Context(), dto.Email); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "verification email sent", nil)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var dto ForgotPasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if appErr := dto.Validate(); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	if err := h.Service.ForgotPassword(r.Context(), dto.Email); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "password reset email sent", nil)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var dto ResetPasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.ResetPassword(r.Context(), dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "password has been reset", nil)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var dto ChangePasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.ChangePassword(r.Context(), dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "password changed", nil)
}

// AuthMiddleware validates the bearer token and loads the user with
// permissions into the request context. The presented token must match
// the cached session token, so a login from another device or a password
// change invalidates every previously issued access token.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(r.Context(), token)
		if err != nil {
			h.WriteAppError(w, err)
			return
		}

		authUser, err := h.Service.GetUserWithPermissions(r.Context(), claims.UserID)
		if err != nil {
			h.Logger.Warn("auth middleware: failed to load user", "user_id", claims.UserID, "error", err)
			h.WriteError(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := internal.ContextWithUser(r.Context(), authUser)
		ctx = logger.With(ctx, "user_id", authUser.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireVerifiedEmail gates directory and management routes behind a
// completed email verification. Must run after AuthMiddleware.
func (h *Handler) RequireVerifiedEmail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := internal.UserFromContext(r.Context())
		if !ok || user == nil {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}
		if !user.EmailVerified {
			h.WriteAppError(w, internal.ErrEmailNotVerified)
			return
		}
		next.ServeHTTP(w, r)
	})
}
