package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const baselineOutput = `goos: linux
BenchmarkAuthenticate-8          	  100000	     10000 ns/op	    2048 B/op	      30 allocs/op
BenchmarkAuthenticate-8          	  100000	     12000 ns/op	    2048 B/op	      30 allocs/op
BenchmarkAuthenticateRevoked-8   	  100000	      8000 ns/op	    1024 B/op	      20 allocs/op
BenchmarkHydrateSession-8        	  100000	      9000 ns/op	    1024 B/op	       0 allocs/op
BenchmarkLogin-8                 	     100	  50000000 ns/op
PASS
`

func mustParse(t *testing.T, s string) samples {
	t.Helper()
	set, err := parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return set
}

func problems(vs []verdict) []string {
	var out []string
	for _, v := range vs {
		if v.problem != "" {
			out = append(out, v.metric.String()+": "+v.problem)
		}
	}
	return out
}

func TestParseKeepsTrackedMetrics(t *testing.T) {
	set := mustParse(t, baselineOutput)
	if got := set[metric{"BenchmarkAuthenticate", "ns/op"}]; len(got) != 2 || got[1] != 12000 {
		t.Fatalf("unexpected authenticate samples %v", got)
	}
	if _, ok := set[metric{"BenchmarkAuthenticate", "B/op"}]; ok {
		t.Fatal("untracked unit kept")
	}
	if _, ok := set[metric{"BenchmarkLogin", "ns/op"}]; ok {
		t.Fatal("untracked benchmark kept")
	}
}

func TestCompareCases(t *testing.T) {
	base := mustParse(t, baselineOutput)
	tests := []struct {
		name      string
		candidate string
		want      []string
	}{
		{"unchanged", baselineOutput, nil},
		{"slower hydrate", strings.ReplaceAll(baselineOutput, "9000 ns/op", "20000 ns/op"),
			[]string{"BenchmarkHydrateSession ns/op"}},
		{"new allocations", strings.Replace(baselineOutput, " 0 allocs/op", " 1 allocs/op", 1),
			[]string{"BenchmarkHydrateSession allocs/op"}},
		{"missing", "PASS\n", []string{
			"BenchmarkAuthenticate ns/op", "BenchmarkAuthenticate allocs/op",
			"BenchmarkAuthenticateRevoked ns/op",
			"BenchmarkHydrateSession ns/op", "BenchmarkHydrateSession allocs/op",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := problems(compare(base, mustParse(t, tt.candidate), defaultThreshold))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d problems, got %v", len(tt.want), got)
			}
			for i := range got {
				if !strings.HasPrefix(got[i], tt.want[i]+":") {
					t.Fatalf("problem %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestRunReportsRegression(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "old.txt")
	candPath := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(basePath, []byte(baselineOutput), 0o600); err != nil {
		t.Fatal(err)
	}
	slower := strings.ReplaceAll(baselineOutput, "8000 ns/op", "16000 ns/op")
	if err := os.WriteFile(candPath, []byte(slower), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := run([]string{"--baseline", basePath, "--candidate", candPath}, &out)
	if !errors.Is(err, ErrRegression) {
		t.Fatalf("expected ErrRegression, got %v", err)
	}
	if !strings.Contains(out.String(), "FAIL BenchmarkAuthenticateRevoked ns/op") {
		t.Fatalf("report missing failure line:\n%s", out.String())
	}

	out.Reset()
	if err := run([]string{"--baseline", basePath, "--candidate", basePath}, &out); err != nil {
		t.Fatalf("identical runs should pass, got %v", err)
	}
}

func TestTrimProcs(t *testing.T) {
	cases := map[string]string{
		"BenchmarkAuthenticate-16": "BenchmarkAuthenticate",
		"BenchmarkAuthenticate":    "BenchmarkAuthenticate",
		"BenchmarkAuth/sub-case":   "BenchmarkAuth/sub-case",
		"BenchmarkAuth/sub-case-4": "BenchmarkAuth/sub-case",
	}
	for in, want := range cases {
		if got := trimProcs(in); got != want {
			t.Fatalf("trimProcs(%q) = %q, want %q", in, got, want)
		}
	}
}
