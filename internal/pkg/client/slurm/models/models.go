package models

import (
	"strings"

	"fern/internal/pkg/gres"
)

// Node is one node of the cluster snapshot.
type Node struct {
	Name       string   `json:"name"`        // node identifier
	State      string   `json:"state"`       // raw state string, may carry +POWER / @ modifiers
	CPUs       int      `json:"cpus"`        // CPU capacity
	CPUsAlloc  int      `json:"cpus_alloc"`  // CPUs currently allocated
	Features   []string `json:"features"`    // raw feature strings, each comma separated
	Gres       []string `json:"gres"`        // GRES descriptors
	GresUsed   []string `json:"gres_used"`   // GRES in-use descriptors
	Partitions []string `json:"partitions"`  // partition membership
}

// Nodes maps node name to node.
type Nodes map[string]*Node

// FeatureTokens flattens the node's raw feature strings into an ordered
// token sequence. Order matters: the first token carries the primary
// classification.
func (n *Node) FeatureTokens() []string {
	var tokens []string
	for _, raw := range n.Features {
		tokens = append(tokens, strings.Split(raw, ",")...)
	}
	return tokens
}

// GresTypeTokens lists the resource-type names from the node's GRES
// descriptors.
func (n *Node) GresTypeTokens() []string {
	return gres.TypeNames(n.Gres)
}

// featureSentinel is prepended by Bright-managed nodes and carries no
// classification value; the rule is preserved as-is.
const featureSentinel = "location=local"

// PrimaryFeature returns the node's first feature token, or the second when
// the first is the location sentinel. The synthetic gpu token carries no
// classification either (GPU accounting runs over GRES types), so a leading
// gpu is skipped the same way. Empty when nothing remains.
func (n *Node) PrimaryFeature() string {
	tokens := n.FeatureTokens()
	i := 0
	if i < len(tokens) && tokens[i] == featureSentinel {
		i++
	}
	if i < len(tokens) && tokens[i] == "gpu" {
		i++
	}
	if i >= len(tokens) {
		return ""
	}
	return tokens[i]
}

// HasGPUFeature reports whether the node's feature tokens signal GPU
// presence. GPU accounting only runs for such nodes.
func (n *Node) HasGPUFeature() bool {
	for _, t := range n.FeatureTokens() {
		switch t {
		case "gpu", "amdgpu", "gh":
			return true
		}
	}
	return false
}

// Job is one running job of the cluster snapshot, or one accounting row in
// the --jobs-since window.
type Job struct {
	ID        string   `json:"id"`
	State     string   `json:"state"`
	UID       int      `json:"uid"`       // owning user id
	Partition string   `json:"partition"`
	Nodes     []string `json:"nodes"`     // expanded node names the job occupies
}

// Jobs is a job list.
type Jobs []Job

// ByNode cross-references jobs by the nodes they occupy.
func (jj Jobs) ByNode() map[string][]*Job {
	m := make(map[string][]*Job)
	for i := range jj {
		for _, n := range jj[i].Nodes {
			m[n] = append(m[n], &jj[i])
		}
	}
	return m
}
