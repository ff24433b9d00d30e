package report

import (
	"context"
	"sort"
)

// Options control bucket emission.
type Options struct {
	// Verbose keeps sub-buckets whose node count equals their state
	// bucket's; those add no information otherwise.
	Verbose bool
	// NodeLists attaches the sorted member names to every line.
	NodeLists bool
}

// KeyCount is one sub-tally entry, ordered by descending count.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Line is one emitted bucket.
type Line struct {
	Name      string     `json:"name"`
	NodeCount int        `json:"nodes"`
	CPUs      int        `json:"cpus"`
	CPUsAlloc int        `json:"cpus_alloc"`
	GPUs      int        `json:"gpus"`
	GPUsAlloc int        `json:"gpus_alloc"`
	JobCounts []KeyCount `json:"job_counts,omitempty"`
	NodeList  []string   `json:"node_list,omitempty"`
}

// StateSection is one state bucket with its surviving sub-buckets.
type StateSection struct {
	Line
	Features []Line `json:"features,omitempty"`
	Gres     []Line `json:"gres,omitempty"`
}

// StateCount is one entry of the trailing per-state summary.
type StateCount struct {
	State string `json:"state"`
	Nodes int    `json:"nodes"`
	CPUs  int    `json:"cpus"`
}

// Emitted is the ordered, suppression-applied form of a Report, ready for
// text rendering or JSON serialization.
type Emitted struct {
	States       []StateSection `json:"states"`
	TotalNodes   int            `json:"total_nodes"`
	TotalCPUs    int            `json:"total_cpus"`
	TotalCPUsAlloc int          `json:"total_cpus_alloc"`
	TotalGPUs    int            `json:"total_gpus"`
	TotalGPUsAlloc int          `json:"total_gpus_alloc"`
	StateSummary []StateCount   `json:"state_summary"`
}

// Emit orders the bucket tree (states and sub-buckets lexicographically),
// applies the suppression rules and computes the grand totals. The gpu
// pseudo-feature bucket is always suppressed: GPU accounting is carried by
// the gres-type buckets, not the synthetic feature token.
func Emit(ctx context.Context, r *Report, s *Summarizer, opts Options) Emitted {
	var e Emitted

	states := make([]string, 0, len(r.States))
	for st := range r.States {
		states = append(states, st)
	}
	sort.Strings(states)

	for _, st := range states {
		sb := r.States[st]
		totals := s.Summarize(ctx, sb.All)
		section := StateSection{Line: makeLine(st, sb.All, totals, opts)}

		e.TotalNodes += totals.NodeCount
		e.TotalCPUs += totals.CPUs
		e.TotalCPUsAlloc += totals.CPUsAlloc
		e.TotalGPUs += totals.GPUs
		e.TotalGPUsAlloc += totals.GPUsAlloc
		e.StateSummary = append(e.StateSummary, StateCount{State: st, Nodes: totals.NodeCount, CPUs: totals.CPUs})

		for _, f := range sortedKeys(sb.Features) {
			if f == "gpu" {
				continue
			}
			fb := sb.Features[f]
			if !opts.Verbose && fb.Len() == totals.NodeCount {
				continue
			}
			section.Features = append(section.Features, makeLine(f, fb, s.Summarize(ctx, fb), opts))
		}

		for _, g := range sortedKeys(sb.Gres) {
			gb := sb.Gres[g]
			if !opts.Verbose && gb.Len() == totals.NodeCount {
				continue
			}
			section.Gres = append(section.Gres, makeLine(g, gb, s.Summarize(ctx, gb), opts))
		}

		e.States = append(e.States, section)
	}
	return e
}

func makeLine(name string, b *Bucket, t Totals, opts Options) Line {
	l := Line{
		Name:      name,
		NodeCount: t.NodeCount,
		CPUs:      t.CPUs,
		CPUsAlloc: t.CPUsAlloc,
		GPUs:      t.GPUs,
		GPUsAlloc: t.GPUsAlloc,
		JobCounts: orderJobCounts(t.JobCounts),
	}
	if opts.NodeLists {
		l.NodeList = b.Names()
	}
	return l
}

// orderJobCounts sorts descending by count, ties by key.
func orderJobCounts(counts map[string]int) []KeyCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]KeyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, KeyCount{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func sortedKeys(m map[string]*Bucket) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
