package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/ticket-feed-service/api"
	"github.com/psds-microservice/ticket-feed-service/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func New(sessionHandler *handler.SessionHandler) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(paths.PathHealth, gin.WrapF(handler.Health))
	r.GET(paths.PathReady, gin.WrapF(handler.Ready))
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/sessions", sessionHandler.Open)
		v1.GET("/sessions/:id/tickets", sessionHandler.List)
		v1.PUT("/sessions/:id/filter", sessionHandler.SetFilter)
		v1.POST("/sessions/:id/scroll", sessionHandler.Scroll)
		v1.GET("/sessions/:id/stream", sessionHandler.Stream)
		v1.DELETE("/sessions/:id", sessionHandler.Close)
	}

	return r
}
