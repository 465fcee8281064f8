package expander

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alg-bug-engineer/Neural-Flow/app/generation"
)

// Field alias lists and the trigger vocabulary are data, not branches:
// upstream tables rename columns freely and localized deployments confirm
// in different words.
var (
	statusAliases  = []string{"状态", "🚦 状态", "Status"}
	titleAliases   = []string{"原始标题", "📌 原始标题", "Title", "选题标题"}
	summaryAliases = []string{"摘要", "Summary", "AI 摘要", "AI摘要", "🤖 AI 摘要", "AI Summary", "选题摘要"}
	urlAliases     = []string{"来源链接", "Source URL", "原文链接", "链接"}
	sourceAliases  = []string{"来源", "来源信息", "Source", "source_info"}
	traceAliases   = []string{"Trace ID", "trace_id", "追踪ID", "追踪 Id"}
	channelAliases = []string{"发布平台", "发布渠道", "📢 发布渠道", "Channels", "平台"}
)

var triggerVocabulary = map[string]bool{
	"确认":                true,
	"已确认":               true,
	"通过":                true,
	"approved":          true,
	"confirmed":         true,
	"ready":             true,
	"ready_to_generate": true,
}

var traceInTitlePattern = regexp.MustCompile(`\[#([A-Za-z0-9_\-]+)\]`)

var platformSplitPattern = regexp.MustCompile(`[,，/\\|]`)

func isConfirmedStatus(value string) bool {
	return triggerVocabulary[strings.ToLower(strings.TrimSpace(value))]
}

// extractCallbackFields digs the record field map out of whichever envelope
// shape the upstream sends: the record may sit at the event root or nested
// under record, data.record, after, or after.record.
func extractCallbackFields(payload map[string]any) map[string]any {
	event := payload
	if nested, ok := payload["event"].(map[string]any); ok {
		event = nested
	}

	candidates := []any{
		event,
		event["record"],
		event["data"],
		nestedValue(event, "data", "record"),
		event["after"],
		nestedValue(event, "after", "record"),
	}

	for _, candidate := range candidates {
		container, ok := candidate.(map[string]any)
		if !ok {
			continue
		}
		if fields, ok := container["fields"].(map[string]any); ok {
			return fields
		}
	}
	return nil
}

func nestedValue(m map[string]any, outer, inner string) any {
	if mid, ok := m[outer].(map[string]any); ok {
		return mid[inner]
	}
	return nil
}

func fieldByAliases(fields map[string]any, aliases []string) (any, bool) {
	for _, alias := range aliases {
		if value, ok := fields[alias]; ok {
			return value, true
		}
	}
	return nil, false
}

// toText flattens the upstream's field value shapes (plain strings, rich
// text objects, option lists) into a single string.
func toText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if text := toText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		for _, key := range []string{"text", "name", "value", "link", "url"} {
			if inner, ok := v[key]; ok {
				if text := toText(inner); text != "" {
					return text
				}
			}
		}
		return ""
	default:
		return ""
	}
}

// parsePlatforms normalizes the channel field into deduped canonical
// platform names. An unresolvable value falls back to twitter.
func parsePlatforms(value any) []string {
	var rawItems []any

	switch v := value.(type) {
	case []any:
		rawItems = v
	case string:
		for _, part := range platformSplitPattern.Split(v, -1) {
			if part = strings.TrimSpace(part); part != "" {
				rawItems = append(rawItems, part)
			}
		}
	case map[string]any:
		for _, item := range v {
			rawItems = append(rawItems, item)
		}
	}

	var normalized []string
	seen := make(map[string]bool)
	for _, item := range rawItems {
		candidate := toText(item)
		if candidate == "" {
			continue
		}
		platform := generation.NormalizePlatform(candidate)
		if !seen[platform] {
			seen[platform] = true
			normalized = append(normalized, platform)
		}
	}

	if len(normalized) == 0 {
		return []string{"twitter"}
	}
	return normalized
}

// traceIDFromTitle pulls a "[#trace]" marker out of the record title.
func traceIDFromTitle(title string) string {
	if match := traceInTitlePattern.FindStringSubmatch(title); match != nil {
		return match[1]
	}
	return ""
}
