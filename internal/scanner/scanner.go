// Package scanner runs WiFi scans and post-processes the results: quality
// filtering, duplicate collapsing and ordering by signal strength.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/radio"
	"github.com/muurk/wifimgr/internal/wifi"
)

const (
	// DefaultModalScanInterval is how long a scan result stays fresh.
	DefaultModalScanInterval = 120 * time.Second
	// DefaultMinimumQuality is used by SetMinimumSignalQuality with no value.
	DefaultMinimumQuality = 8
	// NoQualityFilter disables the minimum quality filter.
	NoQualityFilter = -1

	defaultPollInterval = 50 * time.Millisecond
)

// Scanner is safe for concurrent use.
type Scanner struct {
	driver radio.Driver

	mu               sync.Mutex
	minimumQuality   int
	removeDuplicates bool
	interval         time.Duration
	pollInterval     time.Duration
	now              func() time.Time

	cache    []wifi.ScanResult
	cachedAt time.Time
	valid    bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithPollInterval sets how often scan completion is polled.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scanner) { s.pollInterval = d }
}

// WithModalScanInterval sets how long cached results are reused.
func WithModalScanInterval(d time.Duration) Option {
	return func(s *Scanner) { s.interval = d }
}

// New returns a scanner with duplicate removal on and no quality filter.
func New(driver radio.Driver, opts ...Option) *Scanner {
	s := &Scanner{
		driver:           driver,
		minimumQuality:   NoQualityFilter,
		removeDuplicates: true,
		interval:         DefaultModalScanInterval,
		pollInterval:     defaultPollInterval,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMinimumSignalQuality sets the filter threshold in percent. Called
// with no value it uses DefaultMinimumQuality; -1 disables filtering.
func (s *Scanner) SetMinimumSignalQuality(quality ...int) {
	q := DefaultMinimumQuality
	if len(quality) > 0 {
		q = quality[0]
	}
	s.mu.Lock()
	s.minimumQuality = q
	s.mu.Unlock()
}

// MinimumSignalQuality returns the current filter threshold.
func (s *Scanner) MinimumSignalQuality() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minimumQuality
}

// SetRemoveDuplicateAPs toggles collapsing of entries that share an SSID.
func (s *Scanner) SetRemoveDuplicateAPs(remove bool) {
	s.mu.Lock()
	s.removeDuplicates = remove
	s.mu.Unlock()
}

// Cached returns the last results without scanning, and whether any exist.
func (s *Scanner) Cached() ([]wifi.ScanResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return nil, false
	}
	return clone(s.cache), true
}

// Invalidate forces the next Scan to hit the radio.
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

// Scan returns the processed scan list. Without force, results younger
// than the modal scan interval are returned from cache.
func (s *Scanner) Scan(ctx context.Context, force bool) ([]wifi.ScanResult, error) {
	s.mu.Lock()
	if !force && s.valid && s.now().Sub(s.cachedAt) < s.interval {
		out := clone(s.cache)
		s.mu.Unlock()
		logging.LogScan(len(out), len(out), true)
		return out, nil
	}
	minQuality, dedup, poll := s.minimumQuality, s.removeDuplicates, s.pollInterval
	s.mu.Unlock()

	raw, err := s.run(ctx, poll)
	if err != nil {
		return nil, err
	}

	out := Process(raw, minQuality, dedup)
	logging.LogScan(len(raw), len(out), false)
	if dedup {
		for _, d := range Duplicates(raw) {
			logging.Debug("Dropped duplicate AP",
				zap.String("ssid", d.SSID), zap.String("bssid", d.BSSID), zap.Int("rssi", d.RSSI))
		}
	}

	s.mu.Lock()
	s.cache = clone(out)
	s.cachedAt = s.now()
	s.valid = true
	s.mu.Unlock()

	return out, nil
}

func (s *Scanner) run(ctx context.Context, poll time.Duration) ([]wifi.ScanResult, error) {
	if err := s.driver.StartScan(); err != nil && !errors.Is(err, radio.ErrScanInProgress) {
		return nil, fmt.Errorf("failed to start scan: %w", err)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		results, done, err := s.driver.ScanResults()
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if done {
			return results, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Process applies the quality filter and duplicate removal to raw results
// and sorts them by descending RSSI. The input is not modified.
func Process(raw []wifi.ScanResult, minQuality int, removeDuplicates bool) []wifi.ScanResult {
	entries := make([]wifi.ScanResult, 0, len(raw))
	for _, r := range raw {
		r.Hidden = r.SSID == ""
		r.Duplicate = false
		if minQuality >= 0 && r.Quality() < minQuality {
			continue
		}
		entries = append(entries, r)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RSSI > entries[j].RSSI
	})

	if !removeDuplicates {
		return entries
	}

	// Sorted strongest first, so the first entry seen for an SSID wins.
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if e.Hidden {
			out = append(out, e)
			continue
		}
		if seen[e.SSID] {
			continue
		}
		seen[e.SSID] = true
		out = append(out, e)
	}
	return out
}

// Duplicates returns the entries Process would drop as duplicates, flagged.
func Duplicates(raw []wifi.ScanResult) []wifi.ScanResult {
	sorted := append([]wifi.ScanResult(nil), raw...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RSSI > sorted[j].RSSI
	})

	seen := make(map[string]bool)
	var dups []wifi.ScanResult
	for _, e := range sorted {
		if e.SSID == "" {
			continue
		}
		if seen[e.SSID] {
			e.Duplicate = true
			dups = append(dups, e)
			continue
		}
		seen[e.SSID] = true
	}
	return dups
}

// Strongest returns the entry with the highest RSSI, if any.
func Strongest(results []wifi.ScanResult) (wifi.ScanResult, bool) {
	if len(results) == 0 {
		return wifi.ScanResult{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.RSSI > best.RSSI {
			best = r
		}
	}
	return best, true
}

func clone(in []wifi.ScanResult) []wifi.ScanResult {
	if in == nil {
		return nil
	}
	return append([]wifi.ScanResult(nil), in...)
}
