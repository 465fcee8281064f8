package archive

import (
	"regexp"
	"strings"
	"time"

	"github.com/alg-bug-engineer/Neural-Flow/app/database"
)

var (
	spacePattern    = regexp.MustCompile(`\s+`)
	unsafePattern   = regexp.MustCompile(`[^a-zA-Z0-9\x{4e00}-\x{9fff}_-]+`)
	fileNameMaxLen  = 80
	shortTitleLimit = 48
)

func shortDocTitle(title string) string {
	compact := strings.TrimSpace(spacePattern.ReplaceAllString(title, " "))
	runes := []rune(compact)
	if len(runes) <= shortTitleLimit {
		return compact
	}
	return strings.TrimSpace(string(runes[:shortTitleLimit])) + "..."
}

// docTitle builds the display title used for pushed documents, e.g.
// "[2025-06-02] 选题 | twitter-karpathy | Some Title [#ab12cd34]".
func docTitle(pack database.ContentPackage, now time.Time) string {
	datePrefix := now.Format("2006-01-02")
	title := shortDocTitle(pack.Title)
	if title == "" {
		title = "Neural-Flow"
	}

	if pack.RecordType == database.RecordTypeTopic {
		return "[" + datePrefix + "] 选题 | " + pack.SourceInfo + " | " + title + " [#" + pack.TraceID + "]"
	}
	return "[" + datePrefix + "] 草稿 | " + pack.Platform + " | " + title + " [#" + pack.TraceID + "]"
}

func safeFileName(name string) string {
	cleaned := unsafePattern.ReplaceAllString(name, "-")
	cleaned = strings.Trim(cleaned, "-")
	runes := []rune(cleaned)
	if len(runes) > fileNameMaxLen {
		cleaned = string(runes[:fileNameMaxLen])
	}
	if cleaned == "" {
		return "record"
	}
	return cleaned
}

func bucketForRecord(recordType string, now time.Time) string {
	bucket := "draft_pool"
	if recordType == database.RecordTypeTopic {
		bucket = "topic_pool"
	}
	return now.Format("2006-01-02") + "/" + bucket
}

// buildDocMarkdown renders the archived document body. Topics carry the
// discovery summary and suggested channels, drafts the full generated
// artifact set.
func buildDocMarkdown(pack database.ContentPackage) string {
	if pack.RecordType == database.RecordTypeTopic {
		return strings.Join([]string{
			"# " + pack.Title,
			"",
			"Trace ID: " + pack.TraceID,
			"",
			"## 摘要",
			pack.Summary(),
			"",
			"来源: " + pack.SourceInfo,
			"Source: " + pack.SourceURL,
			"Suggested Platforms: " + strings.Join(pack.Channels, ", "),
		}, "\n")
	}

	lines := []string{
		"# " + pack.Title,
		"",
		"Trace ID: " + pack.TraceID,
		"Platform: " + pack.Platform,
		"来源: " + pack.SourceInfo,
		"",
		"## AI Summary",
		pack.AISummary,
		"",
	}

	if pack.ShortCopy != "" {
		lines = append(lines, "## Twitter Draft", pack.ShortCopy, "")
	}

	lines = append(lines, "## Article", pack.Article, "", "## Images")
	if len(pack.ImageURLs) > 0 {
		for _, url := range pack.ImageURLs {
			lines = append(lines, "- "+url)
		}
	} else {
		lines = append(lines, "- (none)")
	}
	lines = append(lines, "", "Source: "+pack.SourceURL)

	return strings.Join(lines, "\n")
}
