package cfg

type Cfg struct {
	// Application configuration
	RulesPath  string
	Port       string
	DataDir    string
	ArchiveDir string

	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Text generation (OpenAI-compatible endpoint)
	TextGenAPIKey  string
	TextGenBaseURL string
	TextGenModel   string

	// Image generation
	PaintBaseURL string

	// Notification webhook (best-effort)
	NotifyWebhookURL string

	// Base URL archived document links are built on
	PublicBaseURL string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
