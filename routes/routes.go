package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"manuscript-workflow-api/controllers"
	"manuscript-workflow-api/middleware"
)

// Handlers bundles the controllers mounted by SetupRoutes.
type Handlers struct {
	Manuscripts *controllers.ManuscriptController
	Staff       *controllers.StaffController
}

func SetupRoutes(router *gin.Engine, h Handlers, jwtSecret string) {
	// Directors pass every RequireRole check.
	editorial := []string{middleware.RoleStaff, middleware.RoleEditor}
	proofing := []string{middleware.RoleStaff, middleware.RoleEditor, middleware.RoleProofreader}
	rating := []string{middleware.RoleStaff, middleware.RoleEditor, middleware.RoleReviewer}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Manuscript Workflow API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			manuscripts := protected.Group("/manuscripts")
			{
				manuscripts.GET("", h.Manuscripts.ListManuscripts)
				manuscripts.GET("/export", h.Manuscripts.ExportManuscripts)
				manuscripts.POST("/validate-publication", h.Manuscripts.ValidatePublication)
				manuscripts.POST("", middleware.RequireRole(middleware.RoleStaff), h.Manuscripts.CreateManuscript)

				manuscripts.GET("/:id", h.Manuscripts.GetManuscript)
				manuscripts.GET("/:id/history", h.Manuscripts.GetManuscriptHistory)
				manuscripts.GET("/:id/notifications", h.Manuscripts.GetManuscriptNotifications)

				// Pre-Review
				manuscripts.PUT("/:id/editor", middleware.RequireRole(middleware.RoleStaff), h.Manuscripts.AssignEditor)
				manuscripts.POST("/:id/submit-for-review", middleware.RequireRole(editorial...), h.Manuscripts.SubmitForReview)

				// Double-Blind Review
				manuscripts.PUT("/:id/reviewers", middleware.RequireRole(editorial...), h.Manuscripts.AssignReviewers)
				manuscripts.POST("/:id/ratings", middleware.RequireRole(rating...), h.Manuscripts.RecordReviewRating)
				manuscripts.PUT("/:id/reviewers/:reviewerId/rating", middleware.RequireRole(rating...), h.Manuscripts.RecordReviewRating)
				manuscripts.POST("/:id/advance-to-proofreading", middleware.RequireRole(editorial...), h.Manuscripts.AdvanceToProofreading)

				// Final Proofreading
				manuscripts.PUT("/:id/layout-artist", middleware.RequireRole(editorial...), h.Manuscripts.AssignLayoutArtist)
				manuscripts.PUT("/:id/proofreader", middleware.RequireRole(editorial...), h.Manuscripts.AssignProofreader)
				manuscripts.POST("/:id/scores", middleware.RequireRole(proofing...), h.Manuscripts.RecordScores)

				// Revision loop
				manuscripts.POST("/:id/request-revision", middleware.RequireRole(proofing...), h.Manuscripts.RequestRevision)
				manuscripts.POST("/:id/resubmit", middleware.RequireRole(middleware.RoleStaff), h.Manuscripts.ResubmitAfterRevision)

				// Terminal outcomes are director decisions
				manuscripts.POST("/:id/reject", middleware.RequireRole(middleware.RoleDirector), h.Manuscripts.RejectManuscript)
				manuscripts.POST("/:id/publish", middleware.RequireRole(middleware.RoleDirector), h.Manuscripts.PublishManuscript)
			}

			staff := protected.Group("/staff")
			{
				staff.GET("", h.Staff.ListStaff)
				staff.POST("", middleware.RequireRole(middleware.RoleDirector), h.Staff.CreateStaff)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
}
