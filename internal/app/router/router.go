package router

import "github.com/gin-gonic/gin"

// New builds the base engine the modules mount onto.
func New() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	return r
}
