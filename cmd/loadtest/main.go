// Command loadtest drives the search and autocomplete endpoints with
// concurrent workers and reports throughput and latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type config struct {
	baseURL         string
	concurrency     int
	duration        time.Duration
	autocompleteMix float64
	queries         []string
	prefixes        []string
}

type stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64

	latenciesMu sync.Mutex
	latencies   []time.Duration

	statusCodesMu sync.Mutex
	statusCodes   map[int]*atomic.Int64
}

func newStats() *stats {
	return &stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *stats) record(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the organizer service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	autocompleteMix := flag.Float64("autocomplete-mix", 0.3, "fraction of requests sent to autocomplete")
	flag.Parse()

	cfg := config{
		baseURL:         *baseURL,
		concurrency:     *concurrency,
		duration:        *duration,
		autocompleteMix: *autocompleteMix,
		queries: []string{
			"project roadmap",
			"meeting notes",
			"quarterly budget review",
			"design document",
			"python tutorial",
			"deployment checklist",
			"incident postmortem",
			"onboarding guide",
			"performance review",
			"database migration",
			"customer feedback",
			"release notes",
		},
		prefixes: []string{
			"pro", "mee", "bud", "des", "py", "dep", "inc", "onb", "per", "dat",
		},
	}

	fmt.Println("=== Smart Search Organizer Load Test ===")
	fmt.Printf("Target:           %s\n", cfg.baseURL)
	fmt.Printf("Concurrency:      %d\n", cfg.concurrency)
	fmt.Printf("Duration:         %s\n", cfg.duration)
	fmt.Printf("Autocomplete mix: %.0f%%\n", cfg.autocompleteMix*100)
	fmt.Println()

	s := run(cfg)
	report(s, cfg.duration)
}

func run(cfg config) *stats {
	s := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			i := workerID
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				var target string
				if float64(i%100)/100 < cfg.autocompleteMix {
					prefix := cfg.prefixes[i%len(cfg.prefixes)]
					target = fmt.Sprintf("%s/api/v1/autocomplete?prefix=%s&limit=10",
						cfg.baseURL, url.QueryEscape(prefix))
				} else {
					query := cfg.queries[i%len(cfg.queries)]
					target = fmt.Sprintf("%s/api/v1/search?q=%s&limit=10",
						cfg.baseURL, url.QueryEscape(query))
				}
				i++

				start := time.Now()
				resp, err := client.Do(mustNewRequest(ctx, target))
				elapsed := time.Since(start)
				if err != nil {
					s.record(elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return s
}

func mustNewRequest(ctx context.Context, rawURL string) *http.Request {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	return req
}

func report(s *stats, duration time.Duration) {
	total := s.totalRequests.Load()
	success := s.successCount.Load()
	errors := s.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s.latenciesMu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	s.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	s.statusCodesMu.Lock()
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, s.statusCodes[code].Load())
	}
	s.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
