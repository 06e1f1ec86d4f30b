package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the history API routes. Request logs go to logOut.
func SetupRoutes(handler *Handler, logOut io.Writer) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger(logOut))

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		deployments := v1.Group("/deployments")
		{
			deployments.GET("", handler.ListDeployments)
			deployments.GET("/:id", handler.GetDeployment)
		}

		v1.GET("/stats", handler.ListRepoStats)
		v1.GET("/repos/:owner/:repo/stats", handler.GetRepoStats)
	}

	return router
}

// PreviewSite describes the build output served by the preview server.
type PreviewSite struct {
	Root      string // build output directory
	EntryFile string
	AssetsDir string
	// Status reports the state of the rebuild watcher, may be nil.
	Status func() any
}

// SetupPreviewRoutes serves the build output the way GitHub Pages serves the
// publish branch. Unknown paths fall back to the entry file so client-side
// routes resolve.
func SetupPreviewRoutes(site PreviewSite, logOut io.Writer) *gin.Engine {
	router := gin.New()
	router.Use(Recovery())
	router.Use(Logger(logOut))
	router.Use(NoCache())

	entry := filepath.Join(site.Root, site.EntryFile)
	assets := "/" + strings.Trim(filepath.ToSlash(site.AssetsDir), "/")

	router.GET("/__preview/status", func(c *gin.Context) {
		var status any = gin.H{"watching": false}
		if site.Status != nil {
			status = site.Status()
		}
		c.JSON(http.StatusOK, gin.H{"data": status})
	})
	router.Static(assets, filepath.Join(site.Root, site.AssetsDir))
	router.StaticFile("/", entry)
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, assets+"/") {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(entry)
	})

	return router
}
