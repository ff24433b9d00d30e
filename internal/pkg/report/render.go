package report

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders an emitted report as line-oriented text: one line per
// state bucket, indented lines for the surviving feature and gres-type
// sub-buckets, then the grand total and the per-state summary.
func WriteText(w io.Writer, e Emitted) {
	for _, st := range e.States {
		fmt.Fprintf(w, "%-17s\t%4d (%4d/%4d)%s\t%s%s\n",
			st.Name, st.NodeCount, st.CPUs, st.CPUsAlloc, gpuInfo(st.Line), subTally(st.JobCounts), nodeList(st.NodeList))
		for _, f := range st.Features {
			fmt.Fprintf(w, "    %-17s\t%4d (%4d/%4d)%s\t%s%s\n",
				f.Name, f.NodeCount, f.CPUs, f.CPUsAlloc, gpuInfo(f), subTally(f.JobCounts), nodeList(f.NodeList))
		}
		for _, g := range st.Gres {
			fmt.Fprintf(w, "    %-13s\t%4d (%4d/%4d)%s\t%s%s\n",
				g.Name, g.NodeCount, g.CPUs, g.CPUsAlloc, gpuInfo(g), subTally(g.JobCounts), nodeList(g.NodeList))
		}
	}

	total := ""
	if e.TotalGPUs > 0 {
		total = fmt.Sprintf(" (%d/%d GPUS)", e.TotalGPUs, e.TotalGPUsAlloc)
	}
	fmt.Fprintf(w, "Total %d (%d/%d CPUS)%s\n", e.TotalNodes, e.TotalCPUs, e.TotalCPUsAlloc, total)

	if len(e.StateSummary) > 0 {
		parts := make([]string, 0, len(e.StateSummary))
		for _, sc := range e.StateSummary {
			parts = append(parts, fmt.Sprintf("%s: %d (%d)", sc.State, sc.Nodes, sc.CPUs))
		}
		fmt.Fprintln(w, strings.Join(parts, "; "))
	}
}

// WriteTokens renders the -l listing: every known feature and gres type.
func WriteTokens(w io.Writer, features, gresTypes []string) {
	fmt.Fprintf(w, "Features:  %s\n", strings.Join(features, ", "))
	fmt.Fprintf(w, "Gres:      %s\n", strings.Join(gresTypes, ", "))
}

func gpuInfo(l Line) string {
	if l.GPUs == 0 {
		return ""
	}
	return fmt.Sprintf(" (%4d/%4d)", l.GPUs, l.GPUsAlloc)
}

// subTally renders "key count" entries joined with ';', followed by a tab
// when non-empty so an optional node list lines up.
func subTally(counts []KeyCount) string {
	if len(counts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(counts))
	for _, kc := range counts {
		parts = append(parts, fmt.Sprintf("%s %d", kc.Key, kc.Count))
	}
	return strings.Join(parts, ";") + "\t"
}

func nodeList(names []string) string {
	return strings.Join(names, ",")
}
