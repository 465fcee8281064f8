package rules

import "sort"

// Source describes one content source driven by the scheduler. Immutable
// between reloads.
type Source struct {
	ID            string `yaml:"id"`
	Type          string `yaml:"type"`
	URL           string `yaml:"url"`
	FetchInterval string `yaml:"fetch_interval"`
	Weight        int    `yaml:"weight"`
	MaxItems      int    `yaml:"max_items"`
}

type PlatformPolicy struct {
	Enabled        bool   `yaml:"enabled"`
	StylePrompt    string `yaml:"style_prompt"`
	Schedule       string `yaml:"schedule"`
	MaxPostsPerDay int    `yaml:"max_posts_per_day"`
	MinWordCount   int    `yaml:"min_word_count"`
}

type GlobalConfig struct {
	Timezone            string `yaml:"timezone"`
	MemoryRetentionDays int    `yaml:"memory_retention_days"`
}

type VisualConfig struct {
	DefaultStyle string `yaml:"default_style"`
	DefaultRatio string `yaml:"default_ratio"`
}

type Rules struct {
	Global    GlobalConfig              `yaml:"global"`
	Sources   []Source                  `yaml:"sources"`
	Platforms map[string]PlatformPolicy `yaml:"platforms"`
	Visual    VisualConfig              `yaml:"visual"`
}

// EnabledPlatforms returns the names of enabled platforms, used as the
// default channel list on topic packages.
func (r *Rules) EnabledPlatforms() []string {
	names := make([]string, 0, len(r.Platforms))
	for name, policy := range r.Platforms {
		if policy.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
