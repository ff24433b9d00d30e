package featexpr

import "testing"

func set(tokens ...string) Set { return NewSet(tokens) }

func TestParseAndEval(t *testing.T) {
	cases := []struct {
		expr   string
		tokens []string
		want   bool
	}{
		{"gpu", []string{"gpu", "skylake"}, true},
		{"gpu", []string{"rome", "ib"}, false},
		{"gpu and not v100", []string{"gpu", "skylake", "v100"}, false},
		{"gpu and not v100", []string{"gpu", "skylake", "a100"}, true},
		{"gpu or ib", []string{"rome", "ib"}, true},
		{"gpu && !v100", []string{"gpu", "a100"}, true},
		{"gpu || ib", []string{"rome"}, false},
		{"(gpu or ib) and rome", []string{"rome", "ib"}, true},
		{"(gpu or ib) and rome", []string{"skylake", "ib"}, false},
		// 'or' binds weaker than 'and'
		{"gpu and v100 or ib", []string{"ib"}, true},
		{"gpu and (v100 or ib)", []string{"ib"}, false},
		{"not gpu and not ib", []string{"rome"}, true},
		// keywords are case-insensitive
		{"gpu AND NOT v100", []string{"gpu", "a100"}, true},
		// free-form token names
		{"v100-32gb", []string{"gpu", "v100-32gb"}, true},
		{"v100-32gb and nvlink", []string{"gpu", "v100-32gb"}, false},
		{"sapphire+hbm", []string{"sapphire+hbm"}, true},
		{"gpu:a100 or gpu:h100", []string{"gpu:h100"}, true},
		{"location=local", []string{"location=local", "rome"}, true},
	}
	for _, c := range cases {
		expr, err := Parse(c.expr)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", c.expr, err)
			continue
		}
		if got := expr.Eval(set(c.tokens...)); got != c.want {
			t.Errorf("Eval(%q, %v) = %v, want %v", c.expr, c.tokens, got, c.want)
		}
	}
}

func TestParseEmptySelectsEverything(t *testing.T) {
	for _, input := range []string{"", "   ", "\t"} {
		expr, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", input, err)
		}
		if !expr.Eval(set()) || !expr.Eval(set("gpu")) {
			t.Errorf("Parse(%q) should match every node", input)
		}
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"gpu and",
		"and gpu",
		"(gpu or ib",
		"gpu or ib)",
		"gpu & ib",
		"gpu | ib",
		"not",
		"gpu ib",
		"gpu and (or ib)",
		"gpu ~ ib",
	}
	for _, input := range bad {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) expected error, got none", input)
		}
	}
}

func TestEvalIsDeterministic(t *testing.T) {
	expr, err := Parse("gpu and not v100 or (ib and rome)")
	if err != nil {
		t.Fatal(err)
	}
	s := set("gpu", "skylake", "v100", "ib")
	first := expr.Eval(s)
	for i := 0; i < 100; i++ {
		if expr.Eval(s) != first {
			t.Fatalf("evaluation not deterministic on run %d", i)
		}
	}
}
