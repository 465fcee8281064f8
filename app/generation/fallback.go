package generation

import (
	"regexp"
	"strings"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

func compactText(text string, limit int) string {
	cleaned := strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	runes := []rune(cleaned)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return cleaned
}

// fallbackThink builds a deterministic draft from the raw material alone,
// used whenever the model backend is unconfigured or unreachable.
func fallbackThink(title, rawText, historyContext, strategyName string) ThinkResult {
	body := compactText(rawText, 1800)
	context := compactText(historyContext, 300)
	summary := compactText(rawText, 160)

	shortCopy := compactText(
		title+"\n关键信息："+compactText(summary, 120)+"\n观点：结合过往讨论，重点看技术落地与成本。", 280)

	opening := summary
	if opening == "" {
		opening = "这是一个值得跟进的技术动态，先看结论再看细节。"
	}
	if body == "" {
		body = "暂无正文，建议补充官方信息、性能数据和限制条件。"
	}
	if context == "" {
		context = "暂无历史上下文，可对比最近两周同类发布和成本变化。"
	}

	article := strings.Join([]string{
		"# " + title,
		"",
		"## 开场 (" + strategyName + ")",
		opening,
		"",
		"## 关键事实拆解",
		body,
		"",
		"[配图: 未来感数据控制台与模型推理流程，可视化图层叠加]",
		"",
		"## 历史关联",
		context,
		"",
		"## 影响评估",
		"1. 对产品落地：看接入成本、迭代速度和稳定性。",
		"2. 对技术路线：关注模型能力边界和工程复杂度。",
		"3. 对团队协同：明确哪些环节可以自动化、哪些需要人工审核。",
		"",
		"[配图: 工程团队讨论架构方案，白板上有 Agent workflow 草图]",
		"",
		"## 可执行建议",
		"1. 跟踪官方文档和 benchmark 更新。",
		"2. 用小范围场景做 A/B 验证，再决定是否全量接入。",
		"3. 记录关键事实与结论，避免重复试错。",
	}, "\n")

	imagePrompt := "Tech editorial illustration, AI model operations center, layered data dashboards, " +
		"isometric composition, cinematic volumetric lighting, blue and cyan palette, " +
		"clean modern design, ultra detailed, 4k, no text, no watermark"

	return ThinkResult{
		ShortCopy:   shortCopy,
		Article:     article,
		ImagePrompt: imagePrompt,
		Summary:     summary,
	}
}
