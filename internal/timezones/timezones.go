// Package timezones lists the IANA zones a job schedule can run in and
// searches them for the console.
package timezones

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

//go:embed zones.txt
var zoneList string

const (
	// Default is the zone new jobs start with.
	Default = "UTC"

	defaultLimit = 20
	maxLimit     = 100
)

var (
	zonesOnce sync.Once
	zones     []string
	zonesErr  error
)

// Zones returns the offered zones sorted with UTC first.
func Zones() []string {
	zonesOnce.Do(func() {
		zones, zonesErr = Load(strings.NewReader(zoneList))
	})
	if zonesErr != nil {
		panic(zonesErr)
	}
	return append([]string(nil), zones...)
}

// Load reads one zone per line. Blank lines and # comments are skipped,
// duplicates dropped. Every zone must be known to the time package.
func Load(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("timezones: missing reader")
	}
	scanner := bufio.NewScanner(r)
	seen := map[string]bool{}
	var out []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		if _, err := time.LoadLocation(line); err != nil {
			return nil, fmt.Errorf("timezones: %w", err)
		}
		seen[line] = true
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("timezones: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if (out[i] == Default) != (out[j] == Default) {
			return out[i] == Default
		}
		return out[i] < out[j]
	})
	return out, nil
}

// Valid reports whether zone names a location. Empty is not valid.
func Valid(zone string) bool {
	if strings.TrimSpace(zone) == "" || zone == "Local" {
		return false
	}
	_, err := time.LoadLocation(zone)
	return err == nil
}

// Search returns up to limit zones containing query, case-insensitive.
// Prefix matches come first, then alphabetical order. An empty query lists
// the first zones.
func Search(zones []string, query string, limit int) []string {
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]string(nil), zones[:min(limit, len(zones))]...)
	}

	type match struct {
		zone   string
		prefix bool
	}
	var matches []match
	for _, zone := range zones {
		lower := strings.ToLower(zone)
		if !strings.Contains(lower, q) {
			continue
		}
		city := lower
		if idx := strings.LastIndex(lower, "/"); idx >= 0 {
			city = lower[idx+1:]
		}
		matches = append(matches, match{zone: zone, prefix: strings.HasPrefix(lower, q) || strings.HasPrefix(city, q)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].prefix != matches[j].prefix {
			return matches[i].prefix
		}
		return matches[i].zone < matches[j].zone
	})

	out := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.zone)
	}
	return out
}
