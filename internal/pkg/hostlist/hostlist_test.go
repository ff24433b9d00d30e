package hostlist

import (
	"reflect"
	"testing"
)

func TestExpand(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"n01,n02,n03", []string{"n01", "n02", "n03"}},
		{"login-a", []string{"login-a"}},
		{"n[1-3]", []string{"n1", "n2", "n3"}},
		{"n[01-03]", []string{"n01", "n02", "n03"}},
		{"gpu[007-009]", []string{"gpu007", "gpu008", "gpu009"}},
		{"c[1,3-5,10]", []string{"c1", "c3", "c4", "c5", "c10"}},
		{"gpu-a[01-02]-ib", []string{"gpu-a01-ib", "gpu-a02-ib"}},
		{"n[001-003],gpu[07-09]", []string{"n001", "n002", "n003", "gpu07", "gpu08", "gpu09"}},
		{"n[001-003], gpu[07-09]", []string{"n001", "n002", "n003", "gpu07", "gpu08", "gpu09"}},
		{"node[01-02],login01", []string{"node01", "node02", "login01"}},
		{"", nil},
		// invalid range bounds are skipped, the rest survives
		{"n[3-1],ok", []string{"ok"}},
		{"n[a-b],ok", []string{"ok"}},
	}
	for _, c := range cases {
		if got := Expand(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("Expand(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
