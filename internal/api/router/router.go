package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phamdt203/csv-import-service/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "csv-import-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/imports - Submit a CSV file for asynchronous ingestion
		v1.POST("/imports", jobHandler.CreateImport)

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// GET /api/v1/jobs/:job_id/file-url - Presigned download URL
			jobs.GET("/:job_id/file-url", jobHandler.GetFileURL)

			// GET /api/v1/jobs/:job_id/records - Imported rows for a job
			jobs.GET("/:job_id/records", jobHandler.GetJobRecords)

			// DELETE /api/v1/jobs/:job_id - Soft-delete a job
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)
		}
	}

	return r
}
