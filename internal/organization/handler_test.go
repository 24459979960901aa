package organization_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ycchuang/org-management/internal/cache"
	orgDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/organization"
	userDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/user"
	"github.com/ycchuang/org-management/internal/core/events"
	"github.com/ycchuang/org-management/internal/organization"
	orgPostgres "github.com/ycchuang/org-management/internal/organization/postgres"
	"github.com/ycchuang/org-management/internal/transport"
)

var _ = Describe("Organization Handler Integration", func() {
	var (
		repo    organization.RepositoryAPI
		service *organization.Service
		handler *organization.Handler
		router  *chi.Mux
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&orgDatamodel.Organization{}, &orgDatamodel.Membership{}, &userDatamodel.User{})
		Expect(err).NotTo(HaveOccurred())

		store := cache.NewMemoryCache()
		bus := events.NewEventBus(slogger)
		organization.NewCacheInvalidator(store, slogger).Register(bus)

		repo = orgPostgres.NewRepository(db)
		service = organization.NewService(repo, store, bus, slogger)
		handler = organization.NewHandler(service)

		router = chi.NewRouter()
		router.Get("/organizations", handler.List)
		router.Post("/organizations", handler.Create)
		router.Get("/organizations/tree", handler.Tree)
		router.Get("/organizations/{id}", handler.Get)
		router.Put("/organizations/{id}", handler.Update)
		router.Delete("/organizations/{id}", handler.Delete)
		router.Post("/organizations/{id}/restore", handler.Restore)
		router.Get("/organizations/{id}/children", handler.Children)
		router.Get("/organizations/{id}/stats", handler.Stats)
	})

	do := func(method, target string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) transport.Envelope {
		var envelope transport.Envelope
		Expect(json.NewDecoder(w.Body).Decode(&envelope)).To(Succeed())
		return envelope
	}

	It("should create an organization and serve it back", func() {
		w := do(http.MethodPost, "/organizations", map[string]interface{}{
			"name": "Headquarters",
			"type": "COMPANY",
		})
		Expect(w.Code).To(Equal(http.StatusCreated))

		envelope := decode(w)
		created := envelope.Result.(map[string]interface{})
		Expect(created["name"]).To(Equal("Headquarters"))
		Expect(created["id"]).To(HaveLen(26))

		w = do(http.MethodGet, "/organizations/"+created["id"].(string), nil)
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("should reject an invalid payload with a validation error", func() {
		w := do(http.MethodPost, "/organizations", map[string]interface{}{
			"name": "",
			"type": "COMPANY",
		})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should return 404 for a missing organization", func() {
		w := do(http.MethodGet, "/organizations/01JC5M3T8D2E4F6G8H0J2K4M6N", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should return 409 for a duplicate sibling name", func() {
		w := do(http.MethodPost, "/organizations", map[string]interface{}{"name": "Headquarters", "type": "COMPANY"})
		Expect(w.Code).To(Equal(http.StatusCreated))

		w = do(http.MethodPost, "/organizations", map[string]interface{}{"name": "Headquarters", "type": "COMPANY"})
		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("should serve the nested tree", func() {
		w := do(http.MethodPost, "/organizations", map[string]interface{}{"name": "Headquarters", "type": "COMPANY"})
		hq := decode(w).Result.(map[string]interface{})["id"].(string)

		w = do(http.MethodPost, "/organizations", map[string]interface{}{
			"name":      "Engineering",
			"type":      "DEPARTMENT",
			"parent_id": hq,
		})
		Expect(w.Code).To(Equal(http.StatusCreated))

		w = do(http.MethodGet, "/organizations/tree", nil)
		Expect(w.Code).To(Equal(http.StatusOK))

		forest := decode(w).Result.([]interface{})
		Expect(forest).To(HaveLen(1))
		root := forest[0].(map[string]interface{})
		Expect(root["name"]).To(Equal("Headquarters"))
		children := root["children"].([]interface{})
		Expect(children).To(HaveLen(1))
		Expect(children[0].(map[string]interface{})["name"]).To(Equal("Engineering"))
	})

	It("should reflect a delete in the children listing immediately", func() {
		w := do(http.MethodPost, "/organizations", map[string]interface{}{"name": "Headquarters", "type": "COMPANY"})
		hq := decode(w).Result.(map[string]interface{})["id"].(string)

		w = do(http.MethodPost, "/organizations", map[string]interface{}{
			"name":      "Engineering",
			"type":      "DEPARTMENT",
			"parent_id": hq,
		})
		eng := decode(w).Result.(map[string]interface{})["id"].(string)

		w = do(http.MethodGet, "/organizations/"+hq+"/children", nil)
		Expect(decode(w).Result.([]interface{})).To(HaveLen(1))

		w = do(http.MethodDelete, "/organizations/"+eng, nil)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodGet, "/organizations/"+hq+"/children", nil)
		Expect(decode(w).Result.([]interface{})).To(BeEmpty())

		w = do(http.MethodPost, "/organizations/"+eng+"/restore", nil)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodGet, "/organizations/"+hq+"/children", nil)
		Expect(decode(w).Result.([]interface{})).To(HaveLen(1))
	})

	It("should serve stats with a zero reimbursement total", func() {
		w := do(http.MethodPost, "/organizations", map[string]interface{}{
			"name":           "Headquarters",
			"type":           "COMPANY",
			"monthly_budget": "2500.00",
		})
		id := decode(w).Result.(map[string]interface{})["id"].(string)

		w = do(http.MethodGet, "/organizations/"+id+"/stats", nil)
		Expect(w.Code).To(Equal(http.StatusOK))

		stats := decode(w).Result.(map[string]interface{})
		Expect(stats["monthly_budget"]).To(Equal("2500.00"))
		Expect(stats["members"]).To(BeNumerically("==", 0))
		Expect(stats["reimbursements"]).To(BeNumerically("==", 0))
	})
})
