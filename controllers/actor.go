package controllers

import (
	"github.com/gin-gonic/gin"

	"manuscript-workflow-api/middleware"
	"manuscript-workflow-api/services"
)

// actorFromContext builds the acting user from the claims AuthMiddleware set.
func actorFromContext(c *gin.Context) services.Actor {
	return services.Actor{
		ID:    c.GetString(middleware.ContextUserID),
		Name:  c.GetString(middleware.ContextName),
		Email: c.GetString(middleware.ContextEmail),
		Role:  c.GetString(middleware.ContextRole),
	}
}
