package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	intervalPattern = regexp.MustCompile(`^(\d+)([smh])$`)
	schedulePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
)

// Load reads and validates a rules document.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	setDefaults(&r)

	if err := validate(&r); err != nil {
		return nil, fmt.Errorf("invalid rules document: %w", err)
	}

	// Highest weight first; scan order is deterministic across reloads.
	sort.SliceStable(r.Sources, func(i, j int) bool {
		return r.Sources[i].Weight > r.Sources[j].Weight
	})

	return &r, nil
}

// Fingerprint hashes the raw rules file, used to detect changes without
// parsing.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rules file: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ParseInterval converts "30s", "15m" or "2h" into a duration.
func ParseInterval(text string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("unsupported interval format: %q", text)
	}

	value, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("unsupported interval format: %q", text)
	}

	switch m[2] {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	default:
		return time.Duration(value) * time.Hour, nil
	}
}

// ParseSchedule converts a comma-separated list of daily "HH:MM" slots into
// minutes of the day.
func ParseSchedule(text string) ([]int, error) {
	parts := strings.Split(text, ",")
	slots := make([]int, 0, len(parts))
	for _, part := range parts {
		m := schedulePattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("unsupported schedule format: %q", text)
		}
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		slots = append(slots, hour*60+minute)
	}
	return slots, nil
}

func setDefaults(r *Rules) {
	if r.Global.Timezone == "" {
		r.Global.Timezone = "UTC"
	}
	if r.Global.MemoryRetentionDays == 0 {
		r.Global.MemoryRetentionDays = 30
	}
	if r.Visual.DefaultRatio == "" {
		r.Visual.DefaultRatio = "16:9"
	}

	for i := range r.Sources {
		if r.Sources[i].Type == "" {
			r.Sources[i].Type = "rss"
		}
		if r.Sources[i].FetchInterval == "" {
			r.Sources[i].FetchInterval = "30m"
		}
		if r.Sources[i].Weight == 0 {
			r.Sources[i].Weight = 1
		}
		if r.Sources[i].MaxItems == 0 {
			r.Sources[i].MaxItems = 5
		}
	}
}

func validate(r *Rules) error {
	seen := make(map[string]bool, len(r.Sources))
	for i, source := range r.Sources {
		if source.ID == "" {
			return fmt.Errorf("source at index %d has no id", i)
		}
		if source.URL == "" {
			return fmt.Errorf("source %s has no url", source.ID)
		}
		if seen[source.ID] {
			return fmt.Errorf("duplicate source id: %s", source.ID)
		}
		seen[source.ID] = true

		if _, err := ParseInterval(source.FetchInterval); err != nil {
			return fmt.Errorf("source %s: %w", source.ID, err)
		}
	}

	for name, policy := range r.Platforms {
		if policy.Schedule == "" {
			continue
		}
		if _, err := ParseSchedule(policy.Schedule); err != nil {
			return fmt.Errorf("platform %s: %w", name, err)
		}
	}

	if r.Global.MemoryRetentionDays < 0 {
		return fmt.Errorf("memory retention days must be non-negative")
	}

	return nil
}
