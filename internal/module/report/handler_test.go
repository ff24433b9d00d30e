package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os/exec"
	"testing"

	"github.com/gin-gonic/gin"

	"fern/internal/pkg/client/slurm"
)

const sampleNodes = `NodeName=workergpu046 Arch=x86_64 CoresPerSocket=20
   CPUAlloc=0 CPUTot=40 CPULoad=3.00
   AvailableFeatures=gpu,skylake,v100
   ActiveFeatures=gpu,skylake,v100
   Gres=gpu:v100-16gb:2(S:0-1)
   GresUsed=gpu:v100-16gb:0(IDX:N/A)
   State=IDLE ThreadsPerCore=1 Weight=50 Owner=N/A MCS_label=N/A
   Partitions=gpu,request

NodeName=worker5010 Arch=x86_64 CoresPerSocket=64
   CPUAlloc=48 CPUTot=128 CPULoad=0.00
   AvailableFeatures=rome,ib
   ActiveFeatures=rome,ib
   Gres=(null)
   GresUsed=gpu:0
   State=MIXED ThreadsPerCore=1 Weight=35 Owner=N/A MCS_label=N/A
   Partitions=cca,gen`

const sampleJobs = `101|RUNNING|1001|gpu|workergpu046
102|RUNNING|1002|gen|worker5010`

func fakeExec(outputFn func(name string, args ...string) string) slurm.ExecCommandFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		script := fmt.Sprintf("cat <<'EOF'\n%s\nEOF\n", outputFn(name, args...))
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
}

func setupClient(t *testing.T) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := slurm.New(logger).WithExecCommand(fakeExec(func(name string, args ...string) string {
		switch name {
		case "scontrol":
			return sampleNodes
		case "squeue":
			return sampleJobs
		}
		return ""
	}))
	slurm.SetDefault(c)
	t.Cleanup(func() { slurm.SetDefault(nil) })
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Router{}.Register(r)
	return r
}

func doGet(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerGetReport(t *testing.T) {
	setupClient(t)
	r := setupRouter()

	w := doGet(t, r, "/api/v1/report?"+url.Values{"expr": {"gpu"}}.Encode())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body struct {
		Count   int `json:"count"`
		Results struct {
			TotalNodes int `json:"total_nodes"`
			TotalGPUs  int `json:"total_gpus"`
			States     []struct {
				Name string `json:"name"`
			} `json:"states"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Results.TotalNodes != 1 || body.Results.TotalGPUs != 2 {
		t.Errorf("body = %+v", body)
	}
	if len(body.Results.States) != 1 || body.Results.States[0].Name != "IDLE" {
		t.Errorf("states = %+v", body.Results.States)
	}
}

func TestHandlerGetReportWithSummarize(t *testing.T) {
	setupClient(t)
	r := setupRouter()

	w := doGet(t, r, "/api/v1/report?summarize=user")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	// without a wired resolver the fallback naming applies
	if !json.Valid(w.Body.Bytes()) {
		t.Fatalf("invalid JSON: %s", w.Body.String())
	}
	var body struct {
		Results struct {
			States []struct {
				JobCounts []struct {
					Key   string `json:"key"`
					Count int    `json:"count"`
				} `json:"job_counts"`
			} `json:"states"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, st := range body.Results.States {
		for _, kc := range st.JobCounts {
			if kc.Key == "user_1001" || kc.Key == "user_1002" {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("missing fallback user tally: %s", w.Body.String())
	}
}

func TestHandlerGetReportBadExpression(t *testing.T) {
	setupClient(t)
	r := setupRouter()

	w := doGet(t, r, "/api/v1/report?"+url.Values{"expr": {"gpu and ("}}.Encode())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandlerGetReportBadSummarize(t *testing.T) {
	setupClient(t)
	r := setupRouter()

	w := doGet(t, r, "/api/v1/report?summarize=account")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandlerGetReportNoClient(t *testing.T) {
	slurm.SetDefault(nil)
	r := setupRouter()

	w := doGet(t, r, "/api/v1/report")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandlerGetTokens(t *testing.T) {
	setupClient(t)
	r := setupRouter()

	w := doGet(t, r, "/api/v1/tokens")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body struct {
		Results struct {
			Features []string `json:"features"`
			Gres     []string `json:"gres"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	hasGPU := false
	for _, f := range body.Results.Features {
		if f == "gpu" {
			hasGPU = true
		}
	}
	if !hasGPU {
		t.Errorf("features = %v", body.Results.Features)
	}
	if len(body.Results.Gres) != 1 || body.Results.Gres[0] != "v100-16gb" {
		t.Errorf("gres = %v", body.Results.Gres)
	}
}
