package feed

import (
	"regexp"
	"strings"
)

var adWords = []string{"广告", "招聘", "欢迎关注", "点击原文", "推广", "商务合作"}

var highValueHints = []string{
	"发布", "开源", "上线", "agent", "benchmark", "paper", "模型", "融资", "sota",
}

var keywordPattern = regexp.MustCompile(`[A-Za-z]{3,}|[\x{4e00}-\x{9fff}]{2,}`)

type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// IsNoise reports whether the item carries no usable editorial content:
// empty after cleanup, a bare link, or promotional boilerplate.
func (e *Evaluator) IsNoise(title, cleanedText string) bool {
	plain := strings.TrimSpace(strings.ReplaceAll(cleanedText, "\n", " "))
	if plain == "" {
		return true
	}

	if bareURLPattern.MatchString(plain) || bareURLPattern.MatchString(strings.TrimSpace(title)) {
		return true
	}

	for _, word := range adWords {
		if strings.Contains(plain, word) {
			return true
		}
	}

	lower := strings.ToLower(plain)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsHighValue scores an item on substance (length), media, and topical
// hints. Items need at least two of the three signals to pass.
func (e *Evaluator) IsHighValue(item Item) bool {
	merged := strings.ToLower(item.Title + "\n" + item.RawText + "\n" + item.Summary)

	score := 0
	if len([]rune(item.RawText)) >= 220 {
		score++
	}
	if len(item.Images) > 0 {
		score++
	}
	for _, hint := range highValueHints {
		if strings.Contains(merged, hint) {
			score++
			break
		}
	}

	return score >= 2
}

// ExtractKeywords returns up to limit unique lowercase tokens, preserving
// first-seen order. Latin tokens need 3+ letters, CJK runs need 2+.
func (e *Evaluator) ExtractKeywords(title, text string, limit int) []string {
	tokens := keywordPattern.FindAllString(title+" "+text, -1)

	seen := make(map[string]bool, len(tokens))
	result := make([]string, 0, limit)
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		result = append(result, token)
		if len(result) >= limit {
			break
		}
	}

	return result
}
