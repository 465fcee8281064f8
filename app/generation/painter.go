package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/alg-bug-engineer/Neural-Flow/app/httpjson"
)

var promptKeywordMap = map[string]string{
	"人工智能": "artificial intelligence",
	"大模型":  "large language model",
	"模型":   "model",
	"智能体":  "agent",
	"工作流":  "workflow",
	"数据":   "data",
	"可视化":  "data visualization",
	"架构":   "architecture",
	"界面":   "futuristic user interface",
	"代码":   "code",
	"芯片":   "chip",
	"云端":   "cloud infrastructure",
	"科技感":  "futuristic tech aesthetic",
	"插图":   "illustration",
	"封面":   "editorial cover art",
	"流程图":  "process diagram",
}

var (
	cjkPattern    = regexp.MustCompile(`[\x{4e00}-\x{9fff}]+`)
	techMarkers   = []string{"ai", "model", "agent", "data", "workflow", "architecture", "chip", "code"}
	commonTags    = "clean composition, cinematic lighting, high detail, editorial quality, 4k, no text, no watermark, no logo"
	defaultPrompt = "AI technology concept art"
)

// Painter obtains one image URL per prompt, from a remote rendering
// backend when configured and from a deterministic seeded placeholder
// otherwise. The placeholder keeps draft records complete during outages.
type Painter struct {
	client  *httpjson.Client
	baseURL string
}

func NewPainter(client *httpjson.Client, baseURL string) *Painter {
	return &Painter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *Painter) Run(ctx context.Context, prompt, ratio string) string {
	enhanced := EnhancePrompt(prompt)

	if p.baseURL != "" {
		var response struct {
			ImageURL string `json:"image_url"`
		}
		payload := map[string]string{"prompt": enhanced, "ratio": ratio}
		err := p.client.PostJSON(ctx, p.baseURL+"/paint", payload, &response, nil)
		if err == nil && strings.TrimSpace(response.ImageURL) != "" {
			return strings.TrimSpace(response.ImageURL)
		}
		if err != nil {
			slog.WarnContext(ctx, "Image backend failed, using placeholder",
				"component", "generation", "ratio", ratio, "error", err)
		}
	}

	return PlaceholderImage(enhanced, ratio)
}

// PlaceholderImage returns a stable placeholder URL seeded by the prompt
// and ratio so repeated generation of the same draft yields the same image.
func PlaceholderImage(prompt, ratio string) string {
	width, height := sizeFromRatio(ratio)
	hash := sha256.Sum256([]byte(prompt + "-" + ratio))
	seed := hex.EncodeToString(hash[:])[:16]
	return fmt.Sprintf("https://picsum.photos/seed/%s/%d/%d", seed, width, height)
}

func sizeFromRatio(ratio string) (int, int) {
	if ratio == "3:4" {
		return 768, 1024
	}
	return 1024, 576
}

// EnhancePrompt converts mixed-language prompts to English and appends
// rendering quality tags. Technical subjects get an additional blueprint
// styling layer.
func EnhancePrompt(prompt string) string {
	base := toEnglishPrompt(prompt)

	lowered := strings.ToLower(base)
	for _, marker := range techMarkers {
		if strings.Contains(lowered, marker) {
			return "Tech-style illustration, " + base + ", futuristic ui elements, blueprint layer, " +
				"blue-cyan palette, " + commonTags
		}
	}
	return "Professional illustration, " + base + ", elegant color palette, " + commonTags
}

func toEnglishPrompt(prompt string) string {
	cleaned := strings.TrimSpace(prompt)
	if cleaned == "" {
		return defaultPrompt
	}
	if !cjkPattern.MatchString(cleaned) {
		return cleaned
	}

	// Replace longer phrases first so "大模型" wins over "模型".
	keys := make([]string, 0, len(promptKeywordMap))
	for key := range promptKeywordMap {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	converted := cleaned
	for _, key := range keys {
		converted = strings.ReplaceAll(converted, key, " "+promptKeywordMap[key]+" ")
	}

	converted = cjkPattern.ReplaceAllString(converted, " ")
	converted = strings.Trim(whitespacePattern.ReplaceAllString(converted, " "), " ,.;")
	if converted == "" {
		return "AI technology concept art, modern digital illustration"
	}
	return converted
}
