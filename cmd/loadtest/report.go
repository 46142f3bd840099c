package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Mode            string           `json:"mode"`
	Transport       string           `json:"transport"`
	Total           int64            `json:"total"`
	Succeeded       int64            `json:"succeeded"`
	Rejected        int64            `json:"rejected"`
	Failed          int64            `json:"failed"`
	ErrorRate       float64          `json:"error_rate"`
	RPS             float64          `json:"rps"`
	Outcomes        map[string]int64 `json:"outcomes"`
	LatencyMs       latencySummary   `json:"latency_ms"`
}

// collector копит исходы checkout-запросов; безопасен для конкурентной записи.
type collector struct {
	mu        sync.Mutex
	outcomes  map[outcome]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{outcomes: make(map[outcome]int64)}
}

func (c *collector) record(o outcome, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[o]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(cfg config, startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Mode:            string(cfg.mode),
		Transport:       string(cfg.transport),
		Outcomes:        make(map[string]int64, len(c.outcomes)),
		LatencyMs:       buildLatencySummary(c.latencies),
	}
	for o, n := range c.outcomes {
		r.Outcomes[string(o)] = n
		r.Total += n
		switch {
		case o == outcomeOK:
			r.Succeeded += n
		case o.expected():
			r.Rejected += n
		default:
			r.Failed += n
		}
	}
	r.ErrorRate = ratio(r.Failed, r.Total)
	if duration > 0 {
		r.RPS = float64(r.Total) / duration.Seconds()
	}
	return r
}

func printReport(w io.Writer, r report) {
	_, _ = fmt.Fprintln(w, "Checkout load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s transport=%s total=%d succeeded=%d rejected=%d failed=%d error_rate=%.4f\n",
		r.Mode, r.Transport, r.Total, r.Succeeded, r.Rejected, r.Failed, r.ErrorRate)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", r.DurationSeconds, r.RPS)
	_, _ = fmt.Fprintf(w, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		r.LatencyMs.Min, r.LatencyMs.Avg, r.LatencyMs.P50, r.LatencyMs.P95, r.LatencyMs.P99, r.LatencyMs.Max)

	names := make([]string, 0, len(r.Outcomes))
	for name := range r.Outcomes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s: %d\n", name, r.Outcomes[name])
	}
}

func writeJSONReport(path string, r report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
