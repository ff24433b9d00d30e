package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fern/internal/pkg/client/slurm"
	"fern/internal/pkg/common/response"
	"fern/internal/pkg/featexpr"
	"fern/internal/pkg/report"
)

// resolveFn turns a numeric job-owner uid into a name for the user
// sub-tally. Wired by main; the fallback keeps the tally usable without it.
var resolveFn func(ctx context.Context, uid int) string

// SetResolver installs the uid resolver the user sub-tally uses.
func SetResolver(fn func(ctx context.Context, uid int) string) { resolveFn = fn }

func resolveUID(ctx context.Context, uid int) string {
	if resolveFn != nil {
		return resolveFn(ctx, uid)
	}
	return fmt.Sprintf("user_%d", uid)
}

type reportQuery struct {
	Expr      string `form:"expr"`
	Gres      bool   `form:"gres"`
	Summarize string `form:"summarize" binding:"omitempty,oneof=partition user"`
	Verbose   bool   `form:"verbose"`
	Nodes     bool   `form:"nodes"`
}

// HandlerGetReport builds the feature report over the current snapshot.
//
// @Summary Feature report over the current cluster snapshot
// @Description Buckets qualifying nodes by state, primary feature and GRES type
// @Tags report
// @Produce json
// @Param expr query string false "boolean feature expression, empty selects all nodes"
// @Param gres query bool false "match the expression against GRES type names"
// @Param summarize query string false "sub-tally running jobs" Enums(partition, user)
// @Param verbose query bool false "keep sub-buckets that duplicate their parent"
// @Param nodes query bool false "include sorted node name lists per bucket"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/report [get]
func HandlerGetReport(c *gin.Context) {
	client := slurm.Default()
	if client == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "slurm client not initialized"})
		return
	}

	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: err.Error()})
		return
	}

	expr, err := featexpr.Parse(q.Expr)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: err.Error()})
		return
	}

	ctx := c.Request.Context()
	nodes, err := client.GetNodes(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: err.Error()})
		return
	}

	mode := report.ModeFeature
	if q.Gres {
		mode = report.ModeGres
	}
	rep := report.Build(nodes, expr, mode)

	s := &report.Summarizer{
		Nodes:   nodes,
		CountBy: report.CountBy(q.Summarize),
		Logger:  slog.Default(),
	}
	if s.CountBy != report.CountByNone {
		jobs, err := client.GetRunningJobs(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.Response{Detail: err.Error()})
			return
		}
		s.JobsByNode = jobs.ByNode()
		if s.CountBy == report.CountByUser {
			s.Resolve = resolveUID
		}
	}

	e := report.Emit(ctx, rep, s, report.Options{Verbose: q.Verbose, NodeLists: q.Nodes})
	c.JSON(http.StatusOK, response.Response{Count: e.TotalNodes, Results: e})
}

// HandlerGetTokens lists every feature and GRES type token usable in
// expressions.
//
// @Summary All feature and GRES type tokens usable in expressions
// @Tags report
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/tokens [get]
func HandlerGetTokens(c *gin.Context) {
	client := slurm.Default()
	if client == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "slurm client not initialized"})
		return
	}

	nodes, err := client.GetNodes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: err.Error()})
		return
	}

	features, gresTypes := report.Tokens(nodes)
	c.JSON(http.StatusOK, response.Response{
		Count:   len(features) + len(gresTypes),
		Results: gin.H{"features": features, "gres": gresTypes},
	})
}
