package slurmdb

import (
	"strings"
	"testing"

	"fern/config"
)

func TestBuildDSN(t *testing.T) {
	cfg := config.Slurmdb{
		Host:      "db.example.org",
		Port:      3306,
		User:      "reader",
		Password:  "secret",
		Database:  "slurm_acct_db",
		Charset:   "utf8mb4",
		ParseTime: true,
		Loc:       "Local",
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		t.Fatalf("buildDSN: %v", err)
	}
	if !strings.HasPrefix(dsn, "reader:secret@tcp(db.example.org:3306)/slurm_acct_db?") {
		t.Errorf("dsn = %q", dsn)
	}
	for _, param := range []string{"charset=utf8mb4", "parseTime=true", "loc=Local", "timeout=5s"} {
		if !strings.Contains(dsn, param) {
			t.Errorf("dsn missing %q: %q", param, dsn)
		}
	}
}

func TestBuildDSNWithoutPassword(t *testing.T) {
	dsn, err := buildDSN(config.Slurmdb{Host: "localhost", Port: 3306, User: "reader", Database: "slurm_acct_db"})
	if err != nil {
		t.Fatalf("buildDSN: %v", err)
	}
	if !strings.HasPrefix(dsn, "reader@tcp(localhost:3306)/slurm_acct_db") {
		t.Errorf("dsn = %q", dsn)
	}
}

func TestJobFromRow(t *testing.T) {
	j := jobFromRow(jobRow{
		IDJob:     4242,
		IDUser:    1001,
		Partition: "gen",
		NodeList:  "worker[5010-5011],workergpu046",
		State:     1,
		TimeStart: 1700000000,
	})
	if j == nil {
		t.Fatal("jobFromRow returned nil")
	}
	if j.ID != "4242" || j.UID != 1001 || j.Partition != "gen" || j.State != "RUNNING" {
		t.Errorf("job = %+v", j)
	}
	want := []string{"worker5010", "worker5011", "workergpu046"}
	if len(j.Nodes) != len(want) {
		t.Fatalf("nodes = %v", j.Nodes)
	}
	for i := range want {
		if j.Nodes[i] != want[i] {
			t.Errorf("nodes[%d] = %q, want %q", i, j.Nodes[i], want[i])
		}
	}
}

func TestJobFromRowEmptyNodeList(t *testing.T) {
	if j := jobFromRow(jobRow{IDJob: 1, NodeList: ""}); j != nil {
		t.Errorf("expected nil for empty nodelist, got %+v", j)
	}
}

func TestJobStateName(t *testing.T) {
	if got := jobStateName(3); got != "COMPLETED" {
		t.Errorf("state 3 = %q", got)
	}
	if got := jobStateName(99); got != "UNKNOWN" {
		t.Errorf("state 99 = %q", got)
	}
}
