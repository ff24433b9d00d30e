package users

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeUsers(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad(t *testing.T) {
	path := writeUsers(t, `{"alice": {"uid": 1001, "shell": "/bin/bash"}, "bob": {"uid": 1002}}`)
	byUID, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if byUID[1001] != "alice" || byUID[1002] != "bob" {
		t.Errorf("Load = %v", byUID)
	}
}

func TestLoadBadJSON(t *testing.T) {
	path := writeUsers(t, `{"alice": `)
	if _, err := Load(path); err == nil {
		t.Error("expected decode error")
	}
}

type fakeLookup struct {
	names map[int]string
	calls int
}

func (f *fakeLookup) GetUsernameByUIDNumber(_ context.Context, uid int) (string, error) {
	f.calls++
	if name, ok := f.names[uid]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no entry with uidNumber=%d", uid)
}

func TestResolve(t *testing.T) {
	lookup := &fakeLookup{names: map[int]string{2001: "carol"}}
	r := NewResolver(map[int]string{1001: "alice"}, lookup, testLogger())
	ctx := context.Background()

	if got := r.Resolve(ctx, 1001); got != "alice" {
		t.Errorf("Resolve(1001) = %q", got)
	}
	if got := r.Resolve(ctx, 2001); got != "carol" {
		t.Errorf("Resolve(2001) = %q", got)
	}
	// second hit comes from the cache, not another search
	if got := r.Resolve(ctx, 2001); got != "carol" {
		t.Errorf("Resolve(2001) again = %q", got)
	}
	if lookup.calls != 1 {
		t.Errorf("ldap lookup called %d times, want 1", lookup.calls)
	}
	if got := r.Resolve(ctx, 3001); got != "user_3001" {
		t.Errorf("Resolve(3001) = %q, want synthetic label", got)
	}
}

func TestResolveWithoutLDAP(t *testing.T) {
	r := NewResolver(nil, nil, testLogger())
	if got := r.Resolve(context.Background(), 42); got != "user_42" {
		t.Errorf("Resolve(42) = %q", got)
	}
}
