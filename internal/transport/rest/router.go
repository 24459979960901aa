package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/ycchuang/org-management/internal/auth"
	"github.com/ycchuang/org-management/internal/authorization"
	"github.com/ycchuang/org-management/internal/organization"
	"github.com/ycchuang/org-management/internal/transport/middleware"
	"github.com/ycchuang/org-management/internal/transport/swagger"
	"github.com/ycchuang/org-management/internal/user"
)

func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	redisClient redis.UniversalClient,
	authHandler *auth.Handler,
	userHandler *user.Handler,
	orgHandler *organization.Handler,
	authzHandler *authorization.Handler,
	rbac *authorization.RBAC,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db, redisClient)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// OpenAPI spec and Swagger UI live outside the API prefix
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Get("/health-check", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Public auth routes
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.RefreshToken)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Post("/resend-verification", authHandler.ResendVerificationEmail)
		// Verification links carry the email fingerprint in the path
		r.Get("/email/verify/{id}/{hash}", authHandler.VerifyEmail)

		// Routes that need a valid session
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Post("/logout", authHandler.Logout)
			pr.Get("/me", authHandler.Me)
			pr.Post("/change-password", authHandler.ChangePassword)

			// Directory and management routes additionally need a
			// verified email.
			pr.Group(func(vr chi.Router) {
				vr.Use(authHandler.RequireVerifiedEmail)

				vr.Route("/users", func(ur chi.Router) {
					ur.Get("/", userHandler.List)
					ur.Get("/{id}", userHandler.Get)

					ur.Group(func(mr chi.Router) {
						mr.Use(rbac.RequireManageUsers())
						mr.Post("/", userHandler.Create)
						mr.Put("/{id}", userHandler.Update)
						mr.Delete("/{id}", userHandler.Delete)
						mr.Patch("/{id}/organizations", userHandler.SyncOrganizations)
					})
				})

				vr.Route("/organizations", func(or chi.Router) {
					or.Get("/", orgHandler.List)
					or.Get("/tree", orgHandler.Tree)
					or.Get("/{id}", orgHandler.Get)
					or.Get("/{id}/children", orgHandler.Children)
					or.Get("/{id}/users", orgHandler.Users)
					or.Get("/{id}/stats", orgHandler.Stats)

					or.Group(func(mr chi.Router) {
						mr.Use(rbac.RequireManageOrganizations())
						mr.Post("/", orgHandler.Create)
						mr.Put("/{id}", orgHandler.Update)
						mr.Delete("/{id}", orgHandler.Delete)
						mr.Post("/{id}/restore", orgHandler.Restore)
					})
				})

				vr.Route("/authorization", func(ar chi.Router) {
					ar.Get("/roles", authzHandler.ListRoles)
					ar.Get("/roles/{id}", authzHandler.GetRole)
					ar.Get("/permissions", authzHandler.ListPermissions)

					ar.Group(func(mr chi.Router) {
						mr.Use(rbac.RequireManageRoles())
						mr.Post("/roles", authzHandler.CreateRole)
						mr.Put("/roles/{id}", authzHandler.UpdateRole)
						mr.Delete("/roles/{id}", authzHandler.DeleteRole)
						mr.Post("/roles/{id}/permissions", authzHandler.AssignPermissionsToRole)
						mr.Post("/users/{userID}/roles", authzHandler.AssignRolesToUser)
					})
				})
			})
		})
	})
}
