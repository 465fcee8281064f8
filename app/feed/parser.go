package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

const (
	maxTitleRunes   = 300
	maxRawTextRunes = 12000
	maxSummaryRunes = 180
	maxImages       = 6
	maxKeywords     = 8
)

type Parser struct {
	gofeedParser *gofeed.Parser
	evaluator    *Evaluator
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		evaluator:    NewEvaluator(),
	}
}

// Run parses feed data into normalized items, dropping noise entries and
// capping the result at maxItems. Items arrive in feed order.
func (p *Parser) Run(data []byte, sourceID string, maxItems int) ([]Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, maxItems)
	for _, entry := range parsed.Items {
		normalized, ok := p.normalizeItem(entry, sourceID)
		if !ok {
			continue
		}
		items = append(items, normalized)
		if len(items) >= maxItems {
			break
		}
	}

	return items, nil
}

func (p *Parser) normalizeItem(entry *gofeed.Item, sourceID string) (Item, bool) {
	title := strings.TrimSpace(entry.Title)
	link := strings.TrimSpace(entry.Link)

	cleanContent := cleanText(entry.Content)
	cleanDescription := cleanText(entry.Description)

	rawText := cleanContent
	if rawText == "" {
		rawText = cleanDescription
	}
	if rawText == "" {
		rawText = title
	}

	if p.evaluator.IsNoise(title, rawText) {
		return Item{}, false
	}

	images := extractImages(entry.Content)
	if len(images) == 0 {
		images = extractImages(entry.Description)
	}
	if len(images) > maxImages {
		images = images[:maxImages]
	}

	summary := truncateRunes(strings.SplitN(rawText, "\n", 2)[0], maxSummaryRunes)

	item := Item{
		SourceID:    sourceID,
		Fingerprint: generateFingerprint(link),
		Title:       truncateRunes(title, maxTitleRunes),
		URL:         link,
		Summary:     summary,
		RawText:     truncateRunes(rawText, maxRawTextRunes),
		Images:      images,
		Keywords:    p.evaluator.ExtractKeywords(title, rawText, maxKeywords),
	}

	if entry.PublishedParsed != nil {
		item.PublishedAt = entry.PublishedParsed
	}

	return item, true
}

func generateFingerprint(link string) string {
	hash := sha256.Sum256([]byte(link))
	return hex.EncodeToString(hash[:])
}
