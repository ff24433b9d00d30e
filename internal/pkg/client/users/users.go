// Package users maps numeric job-owner uids to user names. The primary
// source is a static JSON document; an LDAP lookup can be enabled as a
// fallback for uids the document does not know.
package users

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// entry is one user record of the JSON document. Only the uid matters here;
// other per-user fields are ignored.
type entry struct {
	UID int `json:"uid"`
}

// Load reads the users document ({"alice": {"uid": 1001}, ...}) and inverts
// it to a uid -> name map.
func Load(path string) (map[int]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]entry)
	if err := json.Unmarshal(b, &byName); err != nil {
		return nil, fmt.Errorf("unable to decode users document %s: %w", path, err)
	}
	byUID := make(map[int]string, len(byName))
	for name, e := range byName {
		byUID[e.UID] = name
	}
	return byUID, nil
}

// UIDLookup is the LDAP fallback seam; satisfied by the ldap client.
type UIDLookup interface {
	GetUsernameByUIDNumber(ctx context.Context, uidNumber int) (string, error)
}

// Resolver resolves uids, degrading to a synthetic user_<uid> label when
// neither source knows the uid. Resolution failures are warnings, never
// errors: a report must not abort over an unknown owner.
type Resolver struct {
	byUID  map[int]string
	lookup UIDLookup
	logger *slog.Logger
}

// NewResolver builds a Resolver; lookup may be nil to disable the LDAP
// fallback.
func NewResolver(byUID map[int]string, lookup UIDLookup, logger *slog.Logger) *Resolver {
	if byUID == nil {
		byUID = make(map[int]string)
	}
	return &Resolver{byUID: byUID, lookup: lookup, logger: logger}
}

// Resolve returns the name for uid. LDAP hits are cached so a uid is looked
// up at most once per run.
func (r *Resolver) Resolve(ctx context.Context, uid int) string {
	if name, ok := r.byUID[uid]; ok {
		return name
	}
	if r.lookup != nil {
		name, err := r.lookup.GetUsernameByUIDNumber(ctx, uid)
		if err == nil && name != "" {
			r.byUID[uid] = name
			return name
		}
		r.logger.Warn("ldap uid lookup failed", "uid", uid, "err", err)
	}
	r.logger.Warn("unknown user", "uid", uid)
	name := fmt.Sprintf("user_%d", uid)
	r.byUID[uid] = name
	return name
}
