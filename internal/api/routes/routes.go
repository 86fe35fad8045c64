package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoospeak-speech/internal/api/handlers"
	"github.com/yoockh/yoospeak-speech/internal/api/middleware"
)

type Deps struct {
	Recognition *handlers.RecognitionHandler

	// JWTSecret enables bearer auth on /v1 when set.
	JWTSecret string
	JWTIssuer string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	v1 := r.Group("/v1")
	if d.JWTSecret != "" {
		v1.Use(middleware.JWTAuth(d.JWTSecret, d.JWTIssuer))
	}

	v1.POST("/recognize", d.Recognition.Recognize)
	v1.POST("/longrunningrecognize", d.Recognition.StartLongRunning)
	v1.GET("/operations/:name", d.Recognition.GetOperation)
}
