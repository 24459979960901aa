package user

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

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

// Response strips the password hash from the persistence model.
type Response struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           *string `json:"phone,omitempty"`
	EmployeeID      *string `json:"employee_id,omitempty"`
	IsActive        bool    `json:"is_active"`
	EmailVerifiedAt *string `json:"email_verified_at"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toResponse(u *userDatamodel.User) Response {
	resp := Response{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		EmployeeID: u.EmployeeID,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  u.UpdatedAt.Format(time.RFC3339),
	}
	if u.EmailVerifiedAt != nil {
		verified := u.EmailVerifiedAt.Format(time.RFC3339)
		resp.EmailVerifiedAt = &verified
	}
	return resp
}

type listResponse struct {
	Users      []Response `json:"users"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	TotalCount int64      `json:"total_count"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", DefaultPerPage),
		Search:  r.URL.Query().Get("search"),
		OrgID:   r.URL.Query().Get("organization_id"),
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active := raw == "true"
		params.Active = &active
	}
	params.Normalize()

	users, total, err := h.Service.List(r.Context(), params)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	responses := make([]Response, len(users))
	for i, u := range users {
		responses[i] = toResponse(u)
	}

	h.WriteResult(w, http.StatusOK, listResponse{
		Users:      responses,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalCount: total,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	user, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteResult(w, http.StatusOK, toResponse(user))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, "user created", toResponse(user))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var dto UpdateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Service.Update(r.Context(), id, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteResult(w, http.StatusOK, toResponse(user))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "user deleted", nil)
}

func (h *Handler) SyncOrganizations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var dto SyncOrganizationsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if appErr := dto.Validate(); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	orgIDs, err := h.Service.SyncOrganizations(r.Context(), id, dto.OrganizationIDs)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "organization memberships updated", map[string]interface{}{
		"user_id":          id,
		"organization_ids": orgIDs,
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
