package models

import (
	"reflect"
	"testing"
)

func TestFeatureTokens(t *testing.T) {
	cases := []struct {
		raw  []string
		want []string
	}{
		{[]string{"gpu,skylake,v100"}, []string{"gpu", "skylake", "v100"}},
		{[]string{"rome,ib", "gpu"}, []string{"rome", "ib", "gpu"}},
		{nil, nil},
	}
	for _, c := range cases {
		n := &Node{Features: c.raw}
		if got := n.FeatureTokens(); !reflect.DeepEqual(got, c.want) {
			t.Errorf("FeatureTokens(%v) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestPrimaryFeature(t *testing.T) {
	cases := []struct {
		raw  []string
		want string
	}{
		{[]string{"gpu,skylake,v100"}, "skylake"},
		{[]string{"rome,ib"}, "rome"},
		{[]string{"location=local,icelake,ib"}, "icelake"},
		{[]string{"location=local,gpu,skylake"}, "skylake"},
		{[]string{"location=local"}, ""},
		{[]string{"gpu"}, ""},
		{nil, ""},
	}
	for _, c := range cases {
		n := &Node{Features: c.raw}
		if got := n.PrimaryFeature(); got != c.want {
			t.Errorf("PrimaryFeature(%v) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestHasGPUFeature(t *testing.T) {
	cases := []struct {
		raw  []string
		want bool
	}{
		{[]string{"gpu,skylake"}, true},
		{[]string{"amdgpu,genoa"}, true},
		{[]string{"gh,grace"}, true},
		{[]string{"rome,ib"}, false},
		// substring of another token must not count
		{[]string{"gpudirect,rome"}, false},
		{nil, false},
	}
	for _, c := range cases {
		n := &Node{Features: c.raw}
		if got := n.HasGPUFeature(); got != c.want {
			t.Errorf("HasGPUFeature(%v) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestJobsByNode(t *testing.T) {
	jobs := Jobs{
		{ID: "1", Nodes: []string{"a", "b"}},
		{ID: "2", Nodes: []string{"b"}},
	}
	byNode := jobs.ByNode()
	if len(byNode["a"]) != 1 || len(byNode["b"]) != 2 {
		t.Errorf("ByNode counts wrong: %v", byNode)
	}
	if byNode["b"][1].ID != "2" {
		t.Errorf("ByNode order wrong: %v", byNode["b"])
	}
}
