package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/alg-bug-engineer/Neural-Flow/app/httpjson"
)

const systemPrompt = "你是资深科技内容主编，擅长把 AI/大模型/Agent 复杂信息写成高可读、高信息密度内容。" +
	"输出必须真实、具体、可执行，禁止空话套话。" +
	"你只返回严格 JSON，不要 markdown 代码块，不要额外解释。" +
	" Return strict JSON only with keys: twitter_draft, article_markdown, image_prompt, ai_summary."

var bannedPhrases = []string{
	"值得注意的是", "让我们来看一下", "不可否认的是", "随着", "综上所述", "总而言之", "本文旨在",
}

type ThinkRequest struct {
	Title          string
	RawText        string
	HistoryContext string
	Platform       string
	Policy         StylePolicy
}

type ThinkResult struct {
	ShortCopy   string
	Article     string
	ImagePrompt string
	Summary     string
}

// TextGenerator calls an OpenAI-compatible chat completion endpoint and
// parses the strict-JSON draft it returns. Without an API key, or on any
// backend or parse failure, it falls back to the deterministic template.
type TextGenerator struct {
	client  *httpjson.Client
	apiKey  string
	baseURL string
	model   string
}

func NewTextGenerator(client *httpjson.Client, apiKey, baseURL, model string) *TextGenerator {
	return &TextGenerator{
		client:  client,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (g *TextGenerator) Run(ctx context.Context, req ThinkRequest) ThinkResult {
	if g.apiKey == "" {
		return fallbackThink(req.Title, req.RawText, req.HistoryContext, req.Policy.StylePrompt)
	}

	result, err := g.callModel(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "Text generation failed, using fallback template",
			"component", "generation", "platform", req.Platform, "error", err)
		return fallbackThink(req.Title, req.RawText, req.HistoryContext, req.Policy.StylePrompt)
	}

	return result
}

func (g *TextGenerator) callModel(ctx context.Context, req ThinkRequest) (ThinkResult, error) {
	payload := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(req)},
		},
		"temperature": 0.5,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	headers := map[string]string{"Authorization": "Bearer " + g.apiKey}
	err := g.client.PostJSON(ctx, g.baseURL+"/chat/completions", payload, &response, headers)
	if err != nil {
		return ThinkResult{}, err
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return ThinkResult{}, fmt.Errorf("model returned empty content")
	}

	parsed, err := parseModelJSON(response.Choices[0].Message.Content)
	if err != nil {
		return ThinkResult{}, err
	}

	return ThinkResult{
		ShortCopy:   compactRunes(parsed.TwitterDraft, 280),
		Article:     parsed.ArticleMarkdown,
		ImagePrompt: compactRunes(parsed.ImagePrompt, 500),
		Summary:     compactRunes(parsed.AISummary, 240),
	}, nil
}

func buildPrompt(req ThinkRequest) string {
	styleDirectives := []string{
		"写作必须像真人表达，避免机械模板语。",
		"观点要明确，给出判断依据，不只复述事实。",
		"优先保留可核验事实：主体、动作、时间、影响、限制条件。",
		"禁用表达: " + strings.Join(bannedPhrases, "、"),
	}

	switch req.Policy.Format {
	case "longform":
		styleDirectives = append(styleDirectives,
			"article_markdown 采用长文结构：开场钩子 -> 事实拆解 -> 技术原理 -> 影响评估 -> 可执行建议。",
			"至少使用 4 个二级标题，段落短小，手机阅读友好。",
			"在适合配图的段落插入 [配图: 描述]，数量 2-4 个，描述具体场景。")
	default:
		styleDirectives = append(styleDirectives,
			"article_markdown 采用日志感/口语化风格，可带第一人称观察。",
			"保持短句和节奏感，不要学术论文腔。")
	}

	imageDirectives := []string{
		"image_prompt 必须是英文单行，不超过 420 字符。",
		"image_prompt 结构必须包含: subject, scene, composition, lighting, color palette, style, quality tags。",
		"默认生成科技插画风格，强调 clean composition, high detail, cinematic lighting, professional editorial cover。",
		"如果是技术主题，加入 blueprint/data dashboard/futuristic UI 等可视元素。",
		"禁止在图中出现可读文字、logo、水印，禁止 lowres, blurry, distorted faces。",
	}

	history := req.HistoryContext
	if history == "" {
		history = "无"
	}

	strategyDetail, _ := json.Marshal(map[string]any{
		req.Platform: map[string]any{
			"enabled":        true,
			"style_prompt":   req.Policy.StylePrompt,
			"tone":           req.Policy.Tone,
			"content_format": req.Policy.Format,
		},
	})

	return "请基于输入生成严格 JSON，键必须且只能是: twitter_draft, article_markdown, image_prompt, ai_summary。\n" +
		"约束:\n" +
		"- twitter_draft <= 280 字。\n" +
		"- ai_summary <= 240 字。\n" +
		"- article_markdown 需可直接发布，不要解释你在做什么。\n" +
		"- image_prompt 仅英文。\n\n" +
		"写作规则:\n- " + strings.Join(styleDirectives, "\n- ") + "\n\n" +
		"生图规则:\n- " + strings.Join(imageDirectives, "\n- ") + "\n\n" +
		"标题: " + req.Title + "\n" +
		"历史上下文: " + history + "\n" +
		"平台策略: " + req.Platform + "\n" +
		"平台策略详情(JSON): " + compactRunes(string(strategyDetail), 2200) + "\n" +
		"正文: " + compactRunes(req.RawText, 9000)
}

type modelDraft struct {
	TwitterDraft    string `json:"twitter_draft"`
	ArticleMarkdown string `json:"article_markdown"`
	ImagePrompt     string `json:"image_prompt"`
	AISummary       string `json:"ai_summary"`
}

var (
	codeFenceOpenPattern  = regexp.MustCompile("^```[a-zA-Z]*")
	codeFenceClosePattern = regexp.MustCompile("```$")
	jsonObjectPattern     = regexp.MustCompile(`\{[\s\S]*\}`)
)

// parseModelJSON tolerates code fences and prose around the JSON object
// that models sometimes emit despite the strict-JSON instruction.
func parseModelJSON(content string) (modelDraft, error) {
	raw := strings.TrimSpace(content)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimSpace(codeFenceOpenPattern.ReplaceAllString(raw, ""))
		raw = strings.TrimSpace(codeFenceClosePattern.ReplaceAllString(raw, ""))
	}

	var draft modelDraft
	if err := json.Unmarshal([]byte(raw), &draft); err == nil {
		return draft, nil
	}

	if match := jsonObjectPattern.FindString(raw); match != "" {
		if err := json.Unmarshal([]byte(match), &draft); err == nil {
			return draft, nil
		}
	}

	return modelDraft{}, fmt.Errorf("model output is not valid JSON")
}

func compactRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}
