// Command authgate-perfcheck compares two `go test -bench` outputs and exits
// non-zero when a tracked benchmark regresses past the threshold.
//
//	go test -bench . -count 5 ./... > new.txt
//	authgate-perfcheck --baseline old.txt --candidate new.txt
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

const defaultThreshold = 0.30

// ErrRegression is returned when at least one tracked metric got worse by
// more than the threshold or has no samples.
var ErrRegression = errors.New("performance regression")

// metric is one benchmark unit, e.g. BenchmarkAuthenticate ns/op.
type metric struct {
	bench string
	unit  string
}

func (m metric) String() string { return m.bench + " " + m.unit }

var tracked = []metric{
	{"BenchmarkAuthenticate", "ns/op"},
	{"BenchmarkAuthenticate", "allocs/op"},
	{"BenchmarkAuthenticateRevoked", "ns/op"},
	{"BenchmarkHydrateSession", "ns/op"},
	{"BenchmarkHydrateSession", "allocs/op"},
}

type samples map[metric][]float64

type verdict struct {
	metric    metric
	baseline  float64
	candidate float64
	delta     float64
	problem   string
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
	case errors.Is(err, ErrRegression):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "authgate-perfcheck:", err)
		os.Exit(2)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("authgate-perfcheck", pflag.ContinueOnError)
	baselinePath := fs.String("baseline", "", "baseline benchmark output")
	candidatePath := fs.String("candidate", "", "candidate benchmark output")
	threshold := fs.Float64("threshold", defaultThreshold, "allowed slowdown ratio (0.30 = +30%)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *baselinePath == "" || *candidatePath == "" {
		return errors.New("--baseline and --candidate are required")
	}
	if *threshold < 0 {
		return errors.New("--threshold must be >= 0")
	}

	baseline, err := parseFile(*baselinePath)
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	candidate, err := parseFile(*candidatePath)
	if err != nil {
		return fmt.Errorf("candidate: %w", err)
	}

	verdicts := compare(baseline, candidate, *threshold)
	return report(out, verdicts)
}

func report(out io.Writer, verdicts []verdict) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "benchmark\tunit\tbaseline\tcandidate\tdelta\t")
	failed := 0
	for _, v := range verdicts {
		if v.problem != "" {
			failed++
		}
		if v.baseline > 0 {
			fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%+.2f%%\t\n", v.metric.bench, v.metric.unit, v.baseline, v.candidate, v.delta*100)
		}
	}
	_ = tw.Flush()

	if failed == 0 {
		return nil
	}
	fmt.Fprintln(out)
	for _, v := range verdicts {
		if v.problem != "" {
			fmt.Fprintf(out, "FAIL %s: %s\n", v.metric, v.problem)
		}
	}
	return fmt.Errorf("%w: %d metric(s)", ErrRegression, failed)
}

// compare judges every tracked metric by its median. A zero baseline (no
// allocations) tolerates no increase at all.
func compare(baseline, candidate samples, threshold float64) []verdict {
	out := make([]verdict, 0, len(tracked))
	for _, m := range tracked {
		v := verdict{metric: m}
		b, c := baseline[m], candidate[m]
		if len(b) == 0 || len(c) == 0 {
			v.problem = "missing samples"
			out = append(out, v)
			continue
		}
		v.baseline, v.candidate = median(b), median(c)
		switch {
		case v.baseline <= 0:
			if v.candidate > 0 {
				v.problem = fmt.Sprintf("went from 0 to %.3f", v.candidate)
			}
		default:
			v.delta = (v.candidate - v.baseline) / v.baseline
			if v.delta > threshold {
				v.problem = fmt.Sprintf("regressed %+.2f%% (limit %+.2f%%)", v.delta*100, threshold*100)
			}
		}
		out = append(out, v)
	}
	return out
}

func parseFile(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// parse reads benchmark result lines of the form
//
//	BenchmarkName-8  N  value unit  value unit ...
//
// keeping only tracked metrics.
func parse(r io.Reader) (samples, error) {
	want := make(map[metric]bool, len(tracked))
	for _, m := range tracked {
		want[m] = true
	}

	out := samples{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		bench := trimProcs(fields[0])
		for i := 2; i+1 < len(fields); i += 2 {
			m := metric{bench: bench, unit: fields[i+1]}
			if !want[m] {
				continue
			}
			if v, err := strconv.ParseFloat(fields[i], 64); err == nil {
				out[m] = append(out[m], v)
			}
		}
	}
	return out, sc.Err()
}

// trimProcs drops the -GOMAXPROCS suffix.
func trimProcs(name string) string {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 {
		return name
	}
	if _, err := strconv.Atoi(name[i+1:]); err != nil {
		return name
	}
	return name[:i]
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := slices.Clone(values)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
