package blocklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/botblock/blocklist-api/internal/circuitbreaker"
	"github.com/botblock/blocklist-api/internal/metrics"
)

const (
	fetchTimeout = 10 * time.Second
	fetchPause   = time.Second

	defaultPrimeURL = "https://openai.com/"

	// Upstreams reject obvious non-browser clients
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// ErrRefreshInProgress is returned when a refresh is already running;
// concurrent refreshes are rejected rather than queued.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// AllFailedError means no agent produced a usable address list; the
// durable dataset was left untouched.
type AllFailedError struct {
	Warnings []string
}

func (e *AllFailedError) Error() string {
	msg := "failed to retrieve any valid IP data"
	if len(e.Warnings) > 0 {
		msg += ": " + strings.Join(e.Warnings, "; ")
	}
	return msg
}

// Result is a completed refresh run. Partial success is success: Data is
// the full merged dataset and Warnings itemizes the agents that failed.
type Result struct {
	Data     Dataset
	Warnings []string
	Updated  []string
}

// Refresher polls the configured upstream sources one agent at a time
// and merges successful fetches into the store. Per-agent failures are
// downgraded to warnings and never abort sibling agents.
type Refresher struct {
	store    *Store
	sources  map[string]string
	client   *http.Client
	pause    time.Duration
	primeURL string
	breakers map[string]*circuitbreaker.Breaker

	mu sync.Mutex // held for the whole run; serializes refreshes
}

func NewRefresher(store *Store, sources map[string]string) *Refresher {
	breakers := make(map[string]*circuitbreaker.Breaker, len(sources))
	for agent := range sources {
		breakers[agent] = circuitbreaker.New(3, 30*time.Minute)
	}

	return &Refresher{
		store:    store,
		sources:  sources,
		client:   &http.Client{Timeout: fetchTimeout},
		pause:    fetchPause,
		primeURL: defaultPrimeURL,
		breakers: breakers,
	}
}

// WithPause overrides the courtesy pause between fetches (tests).
func (r *Refresher) WithPause(d time.Duration) *Refresher {
	r.pause = d
	return r
}

// WithPrimeURL overrides the warm-up request target; empty disables it.
func (r *Refresher) WithPrimeURL(url string) *Refresher {
	r.primeURL = url
	return r
}

// Refresh fetches every configured agent and merges non-empty results.
// It returns ErrRefreshInProgress when called concurrently with itself,
// an *AllFailedError when zero agents could be fetched, and otherwise a
// Result whose Updated slice names the agents whose lists changed. The
// merged dataset is persisted only when something changed.
func (r *Refresher) Refresh(ctx context.Context) (*Result, error) {
	if !r.mu.TryLock() {
		metrics.RefreshRuns.WithLabelValues("busy").Inc()
		return nil, ErrRefreshInProgress
	}
	defer r.mu.Unlock()

	log.Printf("blocklist: starting IP update across %d sources", len(r.sources))

	merged := r.store.All()
	var warnings []string
	var updated []string
	fetched := 0

	r.prime(ctx)

	// Sorted order keeps runs deterministic
	agents := make([]string, 0, len(r.sources))
	for agent := range r.sources {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	for _, agent := range agents {
		if err := sleepCtx(ctx, r.pause); err != nil {
			warnings = append(warnings, fmt.Sprintf("fetch canceled for %s: %v", agent, err))
			continue
		}

		breaker := r.breakers[agent]
		if breaker != nil && !breaker.Allow() {
			warnings = append(warnings, fmt.Sprintf("skipping %s: upstream circuit open", agent))
			continue
		}

		ranges, err := r.fetchAgent(ctx, agent, r.sources[agent])
		if err != nil {
			log.Printf("blocklist: %v", err)
			warnings = append(warnings, err.Error())
			metrics.AgentFetchFailures.WithLabelValues(agent).Inc()
			if breaker != nil {
				breaker.RecordFailure()
			}
			continue
		}

		if breaker != nil {
			breaker.RecordSuccess()
		}
		fetched++

		// A fetch identical to the current list is not an update;
		// idempotent runs leave the durable dataset untouched.
		if !slices.Equal(merged[agent], ranges) {
			merged[agent] = ranges
			updated = append(updated, agent)
			log.Printf("blocklist: updated %s with %d ranges", agent, len(ranges))
		}
	}

	if fetched == 0 {
		metrics.RefreshRuns.WithLabelValues("failed").Inc()
		return nil, &AllFailedError{Warnings: warnings}
	}

	if len(updated) > 0 {
		if err := r.store.Replace(merged); err != nil {
			metrics.RefreshRuns.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("failed to persist merged dataset: %w", err)
		}
		metrics.RefreshRuns.WithLabelValues("updated").Inc()
	} else {
		metrics.RefreshRuns.WithLabelValues("unchanged").Inc()
	}

	return &Result{Data: merged, Warnings: warnings, Updated: updated}, nil
}

// prime issues a warm-up request against the provider homepage so the
// per-agent fetches arrive with session cookies, like a browser would.
// Failures here are irrelevant.
func (r *Refresher) prime(ctx context.Context) {
	if r.primeURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.primeURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (r *Refresher) fetchAgent(ctx context.Context, agent, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bad URL for %s: %v", agent, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://openai.com/")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed for %s: %v", agent, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error occurred for %s: status %d", agent, resp.StatusCode)
	}

	var body struct {
		Prefixes []struct {
			IPv4Prefix string `json:"ipv4Prefix"`
		} `json:"prefixes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("JSON decode error for %s: %v", agent, err)
	}

	ranges := make([]string, 0, len(body.Prefixes))
	for _, prefix := range body.Prefixes {
		if prefix.IPv4Prefix != "" {
			ranges = append(ranges, prefix.IPv4Prefix)
		}
	}

	if len(ranges) == 0 {
		return nil, fmt.Errorf("no IP data found for %s", agent)
	}
	return ranges, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
