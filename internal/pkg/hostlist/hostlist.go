// Package hostlist expands Slurm hostlist expressions like
// "n[01-03],gpu[07-09]-ib,login01" into individual hostnames.
package hostlist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rangedRe = regexp.MustCompile(`^(.*)\[([^\]]+)\](.*)$`)

// Expand returns every hostname named by the expression, in order. Ranges
// keep the zero-padding of their start bound ("n[01-03]" -> n01, n02, n03).
// Malformed ranges are skipped rather than reported; an empty expression
// yields no names.
func Expand(expr string) []string {
	var names []string
	for _, part := range splitTopLevel(expr) {
		m := rangedRe.FindStringSubmatch(part)
		if m == nil {
			names = append(names, part)
			continue
		}
		prefix, rangeList, suffix := m[1], m[2], m[3]
		for _, spec := range strings.Split(rangeList, ",") {
			startStr, endStr, isRange := strings.Cut(spec, "-")
			if !isRange {
				names = append(names, prefix+spec+suffix)
				continue
			}
			start, err1 := strconv.Atoi(startStr)
			end, err2 := strconv.Atoi(endStr)
			if err1 != nil || err2 != nil || start > end {
				continue
			}
			width := len(startStr)
			for i := start; i <= end; i++ {
				names = append(names, fmt.Sprintf("%s%0*d%s", prefix, width, i, suffix))
			}
		}
	}
	return names
}

// splitTopLevel splits on commas that are not inside brackets.
func splitTopLevel(expr string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	for _, ch := range expr {
		switch {
		case ch == '[':
			depth++
		case ch == ']':
			depth--
		case ch == ',' && depth == 0:
			if p := strings.TrimSpace(current.String()); p != "" {
				parts = append(parts, p)
			}
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		parts = append(parts, p)
	}
	return parts
}
