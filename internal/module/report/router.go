package report

import (
	"github.com/gin-gonic/gin"
)

type Router struct{}

func (rt Router) Register(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/report", HandlerGetReport) // GET /api/v1/report?expr=xxx&gres=xxx&summarize=xxx&verbose=xxx&nodes=xxx
		v1.GET("/tokens", HandlerGetTokens) // GET /api/v1/tokens
	}
}
