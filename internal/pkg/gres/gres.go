// Package gres parses Slurm generic-resource descriptors such as
// "gpu:v100-16gb:2(S:0-1)" and their in-use counterparts
// "gpu:v100-16gb:0(IDX:N/A)".
package gres

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// countRe matches the device count in a GPU descriptor. The parenthesised
// placement suffix, when present, follows the digits and is ignored.
var countRe = regexp.MustCompile(`gpu:[^:]+:([0-9]+)`)

// TypeNames extracts the resource-type name (the second colon-delimited
// field, e.g. "v100-32gb") from every comma-separated fragment of every
// descriptor. Fragments without a type field are skipped; a nil or empty
// descriptor list yields no tokens. Malformed input never raises an error.
func TypeNames(descriptors []string) []string {
	var names []string
	for _, d := range descriptors {
		for _, frag := range strings.Split(d, ",") {
			parts := strings.SplitN(frag, ":", 3)
			if len(parts) < 2 {
				continue
			}
			names = append(names, parts[1])
		}
	}
	return names
}

// FirstGPU returns the first descriptor with a "gpu" prefix, in list order.
func FirstGPU(descriptors []string) (string, bool) {
	for _, d := range descriptors {
		if strings.HasPrefix(d, "gpu") {
			return d, true
		}
	}
	return "", false
}

// GPUCount parses the device count out of a gpu:<type>:<digits> descriptor.
func GPUCount(descriptor string) (int, error) {
	m := countRe.FindStringSubmatch(descriptor)
	if m == nil {
		return 0, fmt.Errorf("no gpu:<type>:<count> pattern in %q", descriptor)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("bad gpu count in %q: %w", descriptor, err)
	}
	return n, nil
}
