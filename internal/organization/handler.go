package organization

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

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

type listResponse struct {
	Organizations interface{} `json:"organizations"`
	Page          int         `json:"page"`
	PerPage       int         `json:"per_page"`
	TotalCount    int64       `json:"total_count"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", DefaultPerPage),
		Search:  r.URL.Query().Get("search"),
		Type:    r.URL.Query().Get("type"),
		Status:  r.URL.Query().Get("status"),
	}
	if parent := r.URL.Query().Get("parent_id"); parent != "" {
		params.ParentID = &parent
	}
	params.Normalize()

	orgs, total, err := h.Service.List(r.Context(), params)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteResult(w, http.StatusOK, listResponse{
		Organizations: orgs,
		Page:          params.Page,
		PerPage:       params.PerPage,
		TotalCount:    total,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteResult(w, http.StatusOK, org)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto CreateOrganizationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	org, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusCreated, "organization created", org)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var dto UpdateOrganizationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	org, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteResult(w, http.StatusOK, org)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "organization deleted", nil)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	org, err := h.Service.Restore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "organization restored", org)
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	forest, err := h.Service.GetOrganizationTree(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteResult(w, http.StatusOK, forest)
}

func (h *Handler) Children(w http.ResponseWriter, r *http.Request) {
	children, err := h.Service.GetChildren(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteResult(w, http.StatusOK, children)
}

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", DefaultPerPage)

	members, err := h.Service.GetUsersWithRoles(r.Context(), chi.URLParam(r, "id"), page, perPage)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteResult(w, http.StatusOK, members)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteResult(w, http.StatusOK, stats)
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
