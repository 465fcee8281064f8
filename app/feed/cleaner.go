package feed

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var (
	bareURLPattern   = regexp.MustCompile(`^https?://\S+$`)
	blankLinePattern = regexp.MustCompile(`\n{2,}`)
)

// cleanText strips HTML markup from feed fragments and normalizes the
// result to NFC so fingerprinting and keyword matching behave consistently
// for CJK input.
func cleanText(text string) string {
	text = strings.TrimSpace(html.UnescapeString(text))
	if text == "" {
		return ""
	}
	if bareURLPattern.MatchString(text) {
		return text
	}
	if !strings.ContainsAny(text, "<>") {
		return norm.NFC.String(text)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return norm.NFC.String(text)
	}

	doc.Find("br, p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	cleaned := doc.Text()
	cleaned = blankLinePattern.ReplaceAllString(cleaned, "\n")

	lines := strings.Split(cleaned, "\n")
	trimmed := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			trimmed = append(trimmed, line)
		}
	}

	return norm.NFC.String(strings.Join(trimmed, "\n"))
}

// extractImages collects img src attributes in document order.
func extractImages(htmlText string) []string {
	if htmlText == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil
	}

	var result []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			result = append(result, src)
		}
	})

	return result
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
