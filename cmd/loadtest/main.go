// Command loadtest drives POST /api/v1/predict with concurrent workers and
// reports throughput, status codes, and latency percentiles split by cache
// hits and misses.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-unique 50] [-warmup 5s]
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/prediction"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

type options struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	warmup      time.Duration
	bodies      [][]byte
}

// sample is one completed request.
type sample struct {
	latency time.Duration
	status  int
	hit     bool
}

// recorder collects samples from all workers. Samples taken during warmup
// are dropped so cold-cache misses do not skew the report.
type recorder struct {
	measuring atomic.Bool
	failures  atomic.Int64

	mu      sync.Mutex
	samples []sample
}

func (r *recorder) add(s sample) {
	if !r.measuring.Load() {
		return
	}
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

func (r *recorder) fail() {
	if r.measuring.Load() {
		r.failures.Add(1)
	}
}

var (
	locations   = []string{"mumbai", "pune", "thane", "gurgaon", "new-delhi", "kolkata", "bangalore", "hyderabad"}
	furnishings = []string{"Unfurnished", "Semi-Furnished", "Furnished"}
	facings     = []string{"East", "North - East", "West", "South - West"}
	parking     = []string{"Covered", "Open", "No parking"}
)

// requestBodies builds n distinct prediction requests. Workers cycle through
// them, so once every body has been seen the run is mostly cache hits.
func requestBodies(n int) ([][]byte, error) {
	bodies := make([][]byte, n)
	for i := range bodies {
		floors := 4 + i%20
		req := map[string]any{
			"location":             locations[i%len(locations)],
			"transaction":          []string{"Resale", "New Property"}[i%2],
			"furnishing":           furnishings[i%len(furnishings)],
			"bathroom":             1 + i%3,
			"balcony":              1 + i%2,
			"num_bhk":              1 + i%4,
			"floor_num":            i % floors,
			"num_floors":           floors,
			"overlooking_garden":   i % 2,
			"overlooking_mainroad": (i + 1) % 2,
			"overlooking_pool":     0,
			"parking_cover":        parking[i%len(parking)],
			"parking_spots":        i % 3,
			"facing":               facings[i%len(facings)],
			"carpet_area":          float64(450 + (i*37)%1500),
		}
		data, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		bodies[i] = data
	}
	return bodies, nil
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the prediction service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "measured duration")
	warmup := flag.Duration("warmup", 5*time.Second, "unmeasured warmup before the run")
	unique := flag.Int("unique", 50, "number of distinct request bodies")
	flag.Parse()

	bodies, err := requestBodies(max(*unique, 1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "building requests: %v\n", err)
		os.Exit(1)
	}
	opts := options{
		baseURL:     *baseURL,
		concurrency: max(*concurrency, 1),
		duration:    *duration,
		warmup:      max(*warmup, 0),
		bodies:      bodies,
	}

	fmt.Println("=== Prediction API Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("Warmup:      %s\n", opts.warmup)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Printf("Requests:    %d unique\n\n", len(opts.bodies))

	rec := run(opts)
	if !printReport(rec, opts.duration) {
		os.Exit(1)
	}
}

func run(opts options) *recorder {
	rec := &recorder{samples: make([]sample, 0, 1<<16)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	url := opts.baseURL + "/api/v1/predict"

	ctx, cancel := context.WithTimeout(context.Background(), opts.warmup+opts.duration)
	defer cancel()
	if opts.warmup > 0 {
		time.AfterFunc(opts.warmup, func() { rec.measuring.Store(true) })
	} else {
		rec.measuring.Store(true)
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := range opts.concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				body := opts.bodies[i%len(opts.bodies)]
				start := time.Now()
				status, hit, err := predict(ctx, client, url, body)
				if ctx.Err() != nil {
					return nil
				}
				if err != nil {
					rec.fail()
					continue
				}
				rec.add(sample{latency: time.Since(start), status: status, hit: hit})
			}
			return nil
		})
	}
	_ = g.Wait()
	return rec
}

func predict(ctx context.Context, client *http.Client, url string, body []byte) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, false, nil
	}
	var out prediction.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp.StatusCode, false, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, out.CacheHit, nil
}

// printReport writes the summary and reports whether any request completed.
func printReport(rec *recorder, measured time.Duration) bool {
	rec.mu.Lock()
	samples := slices.Clone(rec.samples)
	rec.mu.Unlock()
	failures := rec.failures.Load()
	total := int64(len(samples)) + failures

	codes := make(map[int]int)
	var hits, misses []float64
	for _, s := range samples {
		codes[s.status]++
		if s.status != http.StatusOK {
			continue
		}
		ms := float64(s.latency.Microseconds()) / 1000
		if s.hit {
			hits = append(hits, ms)
		} else {
			misses = append(misses, ms)
		}
	}
	ok := len(hits) + len(misses)

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", ok)
	fmt.Printf("Transport Errs:  %d\n", failures)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(total-int64(ok))/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/measured.Seconds())
	}
	if ok > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(len(hits))/float64(ok)*100)
	}

	fmt.Println()
	fmt.Println("=== Latency (ms) ===")
	fmt.Printf("%-8s %8s %8s %8s %8s %8s %8s\n", "", "count", "mean", "p50", "p95", "p99", "max")
	printLatency("hits", hits)
	printLatency("misses", misses)
	printLatency("all", append(slices.Clone(hits), misses...))

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	for _, code := range slices.Sorted(maps.Keys(codes)) {
		fmt.Printf("  %d: %d\n", code, codes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the prediction service running?")
		return false
	}
	return true
}

func printLatency(label string, ms []float64) {
	if len(ms) == 0 {
		fmt.Printf("%-8s %8d\n", label, 0)
		return
	}
	slices.Sort(ms)
	fmt.Printf("%-8s %8d %8.2f %8.2f %8.2f %8.2f %8.2f\n",
		label,
		len(ms),
		stat.Mean(ms, nil),
		stat.Quantile(0.50, stat.Empirical, ms, nil),
		stat.Quantile(0.95, stat.Empirical, ms, nil),
		stat.Quantile(0.99, stat.Empirical, ms, nil),
		ms[len(ms)-1],
	)
}
