package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Application configuration
	RulesPath  string `long:"rules-path" env:"RULES_PATH" default:"./config/rules.yaml" description:"Path to the rules document (sources, platforms, retention)"`
	Port       string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	DataDir    string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for sqlite databases"`
	ArchiveDir string `long:"archive-dir" env:"ARCHIVE_DIR" default:"./data/archive" description:"Directory for archived markdown documents"`

	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for pipeline tasks"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler tick interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for control endpoints (optional)"`

	// Text generation (OpenAI-compatible endpoint)
	TextGenAPIKey  string `long:"textgen-api-key" env:"TEXTGEN_API_KEY" description:"API key for the text generation endpoint (optional, template fallback otherwise)"`
	TextGenBaseURL string `long:"textgen-base-url" env:"TEXTGEN_BASE_URL" default:"https://api.moonshot.cn/v1" description:"Base URL of the OpenAI-compatible text generation API"`
	TextGenModel   string `long:"textgen-model" env:"TEXTGEN_MODEL" default:"kimi-k2-turbo-preview" description:"Model name for text generation"`

	// Image generation
	PaintBaseURL string `long:"paint-base-url" env:"PAINT_BASE_URL" description:"Base URL of the image generation service (optional, placeholder fallback otherwise)"`

	// Notification webhook
	NotifyWebhookURL string `long:"notify-webhook-url" env:"NOTIFY_WEBHOOK_URL" description:"Webhook URL for topic notifications (optional, best-effort)"`

	PublicBaseURL string `long:"public-base-url" env:"PUBLIC_BASE_URL" description:"Base URL for archived document links (e.g., http://localhost:8080)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Neural-Flow/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Shanghai)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		RulesPath:         raw.RulesPath,
		Port:              raw.Port,
		DataDir:           raw.DataDir,
		ArchiveDir:        raw.ArchiveDir,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		TextGenAPIKey:     raw.TextGenAPIKey,
		TextGenBaseURL:    raw.TextGenBaseURL,
		TextGenModel:      raw.TextGenModel,
		PaintBaseURL:      raw.PaintBaseURL,
		NotifyWebhookURL:  raw.NotifyWebhookURL,
		PublicBaseURL:     raw.PublicBaseURL,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set installs a configuration directly, bypassing flag parsing. Test use only.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
