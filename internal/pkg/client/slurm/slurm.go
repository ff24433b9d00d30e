// Package slurm loads the cluster snapshot (nodes and running jobs) by
// invoking the Slurm command-line tools.
package slurm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"fern/internal/pkg/client/slurm/models"
	"fern/internal/pkg/hostlist"
)

// Package-level default Client for convenience wiring.
var defaultClient *Client

// SetDefault sets the package-level default Client.
func SetDefault(c *Client) { defaultClient = c }

// Default returns the package-level default Client.
func Default() *Client { return defaultClient }

// ExecCommandFunc matches exec.CommandContext so tests can fake command output.
type ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Client fetches node and job snapshots from slurmctld via scontrol/squeue.
type Client struct {
	execCommand ExecCommandFunc
	logger      *slog.Logger
}

func New(logger *slog.Logger) *Client {
	return &Client{execCommand: exec.CommandContext, logger: logger}
}

// WithExecCommand replaces the command constructor; used by tests.
func (c *Client) WithExecCommand(exec ExecCommandFunc) *Client {
	c.execCommand = exec
	return c
}

// GetNodes fetches every node via "scontrol -d show node". The -d flag is
// required for the GresUsed= lines. Output is key=value blocks, one block
// per node, separated by blank lines.
func (c *Client) GetNodes(ctx context.Context) (models.Nodes, error) {
	cmd := c.execCommand(ctx, "scontrol", "-d", "show", "node")
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("failed to exec scontrol command", "output", string(out), "cmd", cmd.String(), "err", err)
		return nil, fmt.Errorf("failed to exec scontrol command")
	}
	return c.parseNodes(string(out)), nil
}

// GetRunningJobs fetches the RUNNING jobs via squeue, with their owning uid,
// partition and expanded node list.
// squeue -h -t RUNNING -o "%i|%T|%U|%P|%N"
// JOBID STATE UID PARTITION NODELIST
func (c *Client) GetRunningJobs(ctx context.Context) (models.Jobs, error) {
	jobs := make(models.Jobs, 0)
	cmd := c.execCommand(ctx, "squeue", "-h", "-t", "RUNNING", "-o", "%i|%T|%U|%P|%N")
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("unable to get running jobs", "output", string(out), "cmd", cmd.String(), "err", err)
		return nil, fmt.Errorf("failed to exec squeue command")
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 5 {
			c.logger.Warn("invalid squeue output line, skip", "line", line)
			continue
		}
		if fields[1] != "RUNNING" {
			continue
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil {
			c.logger.Warn("invalid uid in squeue output line, skip", "line", line)
			continue
		}
		jobs = append(jobs, models.Job{
			ID:        fields[0],
			State:     fields[1],
			UID:       uid,
			Partition: fields[3],
			Nodes:     hostlist.Expand(fields[4]),
		})
	}
	return jobs, nil
}

// parseNodes parses "scontrol -d show node" output. Each block is a set of
// key=value tokens; a new NodeName key starts a new block. Tokens without
// '=' (free-text tails of Reason/OS values) are ignored.
func (c *Client) parseNodes(content string) models.Nodes {
	nodes := make(models.Nodes)
	current := make(map[string]string)

	flush := func() {
		if len(current) == 0 {
			return
		}
		if n := c.nodeFromBlock(current); n != nil {
			nodes[n.Name] = n
		}
		current = make(map[string]string)
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" {
			flush()
			continue
		}
		for _, tok := range strings.Fields(trimmed) {
			eq := strings.IndexByte(tok, '=')
			if eq < 0 {
				continue
			}
			key, val := tok[:eq], tok[eq+1:]
			if key == "NodeName" && current["NodeName"] != "" {
				flush()
			}
			current[key] = val
		}
	}
	flush()
	return nodes
}

func (c *Client) nodeFromBlock(block map[string]string) *models.Node {
	name := block["NodeName"]
	if name == "" {
		c.logger.Warn("scontrol node block without NodeName, skip", "block", fmt.Sprint(block))
		return nil
	}
	cpus, _ := strconv.Atoi(block["CPUTot"])
	alloc, _ := strconv.Atoi(block["CPUAlloc"])

	features := block["ActiveFeatures"]
	if features == "" {
		features = block["AvailableFeatures"]
	}

	return &models.Node{
		Name:       name,
		State:      block["State"],
		CPUs:       cpus,
		CPUsAlloc:  alloc,
		Features:   valueList(features),
		Gres:       splitDescriptors(cleanValue(block["Gres"])),
		GresUsed:   splitDescriptors(cleanValue(block["GresUsed"])),
		Partitions: splitList(cleanValue(block["Partitions"])),
	}
}

// cleanValue maps scontrol's null placeholders to the empty string.
func cleanValue(v string) string {
	switch v {
	case "(null)", "N/A":
		return ""
	}
	return v
}

// valueList wraps a non-empty raw value in a single-element list.
func valueList(v string) []string {
	if cleanValue(v) == "" {
		return nil
	}
	return []string{v}
}

// splitList splits a comma-separated value, empty in -> empty out.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// splitDescriptors splits a GRES value on commas outside parentheses, so an
// index list like gpu:v100:2(IDX:0,2-3) stays one descriptor.
func splitDescriptors(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, v[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, v[start:])
	return out
}
