// Package report aggregates qualifying nodes into (state, feature,
// gres-type) buckets and renders the result.
package report

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"fern/internal/pkg/client/slurm/models"
	"fern/internal/pkg/featexpr"
	"fern/internal/pkg/gres"
)

// Mode selects which token set the filter expression sees.
type Mode int

const (
	// ModeFeature evaluates the expression over feature tokens.
	ModeFeature Mode = iota
	// ModeGres evaluates the expression over GRES type tokens.
	ModeGres
)

// CountBy selects the sub-tally dimension.
type CountBy string

const (
	CountByNone      CountBy = ""
	CountByPartition CountBy = "partition"
	CountByUser      CountBy = "user"
)

// Bucket holds a deduplicated node membership. A node reached through
// several paths (multiple GRES descriptors of the same type, a job on the
// node in several partitions) still counts once.
type Bucket struct {
	members map[string]struct{}
}

func newBucket() *Bucket { return &Bucket{members: make(map[string]struct{})} }

func (b *Bucket) add(name string) { b.members[name] = struct{}{} }

// Len is the deduplicated node count.
func (b *Bucket) Len() int { return len(b.members) }

// Names returns the member node names, sorted.
func (b *Bucket) Names() []string {
	names := make([]string, 0, len(b.members))
	for n := range b.members {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StateBucket is one normalized-state bucket with its per-feature and
// per-gres-type sub-buckets.
type StateBucket struct {
	All      *Bucket
	Features map[string]*Bucket
	Gres     map[string]*Bucket
}

func newStateBucket() *StateBucket {
	return &StateBucket{
		All:      newBucket(),
		Features: make(map[string]*Bucket),
		Gres:     make(map[string]*Bucket),
	}
}

// Report is the full bucket tree for one snapshot.
type Report struct {
	Mode   Mode
	States map[string]*StateBucket
}

// NormalizeState strips the power-saving and reboot-scheduled markers; the
// report does not distinguish those.
func NormalizeState(state string) string {
	state = strings.ReplaceAll(state, "+POWER", "")
	return strings.ReplaceAll(state, "@", "")
}

// Build runs the expression over every node and buckets the qualifying ones
// by normalized state, by primary feature and — in feature mode — by every
// GRES type the node carries. GPU accounting is carried by the gres-type
// buckets, so in gres mode (where the expression already works on those
// tokens) they are not built.
func Build(nodes models.Nodes, expr featexpr.Expr, mode Mode) *Report {
	r := &Report{Mode: mode, States: make(map[string]*StateBucket)}
	for name, node := range nodes {
		var tokens []string
		if mode == ModeGres {
			tokens = node.GresTypeTokens()
		} else {
			tokens = node.FeatureTokens()
		}
		if !expr.Eval(featexpr.NewSet(tokens)) {
			continue
		}

		state := NormalizeState(node.State)
		sb, ok := r.States[state]
		if !ok {
			sb = newStateBucket()
			r.States[state] = sb
		}
		sb.All.add(name)

		if pf := node.PrimaryFeature(); pf != "" {
			fb, ok := sb.Features[pf]
			if !ok {
				fb = newBucket()
				sb.Features[pf] = fb
			}
			fb.add(name)
		}

		if mode == ModeFeature {
			for _, g := range node.GresTypeTokens() {
				if g == "" {
					continue
				}
				gb, ok := sb.Gres[g]
				if !ok {
					gb = newBucket()
					sb.Gres[g] = gb
				}
				gb.add(name)
			}
		}
	}
	return r
}

// Totals are the derived figures of one bucket, recomputed from the
// deduplicated member set.
type Totals struct {
	NodeCount int
	CPUs      int
	CPUsAlloc int
	GPUs      int
	GPUsAlloc int
	JobCounts map[string]int
}

// Summarizer computes bucket totals against the snapshot.
type Summarizer struct {
	Nodes      models.Nodes
	JobsByNode map[string][]*models.Job
	CountBy    CountBy
	Resolve    func(ctx context.Context, uid int) string
	Logger     *slog.Logger
}

// Summarize walks the bucket's members. GPU figures come from the first
// gpu-prefixed descriptor of Gres (total) and GresUsed (allocated), counted
// via the gpu:<type>:<digits> pattern; a miss on either side is logged and
// contributes zero for that side, the node's other figures survive.
func (s *Summarizer) Summarize(ctx context.Context, b *Bucket) Totals {
	t := Totals{JobCounts: make(map[string]int)}
	for name := range b.members {
		node, ok := s.Nodes[name]
		if !ok {
			continue
		}
		t.NodeCount++
		t.CPUs += node.CPUs
		t.CPUsAlloc += node.CPUsAlloc

		if s.CountBy != CountByNone {
			for _, j := range s.JobsByNode[name] {
				t.JobCounts[s.tallyKey(ctx, j)]++
			}
		}

		if !node.HasGPUFeature() {
			continue
		}
		if d, ok := gres.FirstGPU(node.Gres); ok {
			if n, err := gres.GPUCount(d); err == nil {
				t.GPUs += n
			} else {
				s.Logger.Warn("skipping gpu total", "node", name, "gres", node.Gres, "err", err)
			}
		} else {
			s.Logger.Warn("gpu-featured node without gpu gres", "node", name, "gres", node.Gres)
		}
		if d, ok := gres.FirstGPU(node.GresUsed); ok {
			if n, err := gres.GPUCount(d); err == nil {
				t.GPUsAlloc += n
			} else {
				s.Logger.Warn("skipping gpu allocation", "node", name, "gres_used", node.GresUsed, "err", err)
			}
		} else {
			s.Logger.Warn("gpu-featured node without gpu gres_used", "node", name, "gres_used", node.GresUsed)
		}
	}
	return t
}

func (s *Summarizer) tallyKey(ctx context.Context, j *models.Job) string {
	if s.CountBy == CountByUser {
		return s.Resolve(ctx, j.UID)
	}
	return j.Partition
}

// Tokens gathers every known feature and gres type token across all nodes,
// sorted and deduplicated. This backs the -l listing and the tokens API.
func Tokens(nodes models.Nodes) (features, gresTypes []string) {
	fset := make(map[string]struct{})
	gset := make(map[string]struct{})
	for _, n := range nodes {
		for _, f := range n.FeatureTokens() {
			if f != "" {
				fset[f] = struct{}{}
			}
		}
		for _, g := range n.GresTypeTokens() {
			if g != "" {
				gset[g] = struct{}{}
			}
		}
	}
	for f := range fset {
		features = append(features, f)
	}
	for g := range gset {
		gresTypes = append(gresTypes, g)
	}
	sort.Strings(features)
	sort.Strings(gresTypes)
	return features, gresTypes
}
