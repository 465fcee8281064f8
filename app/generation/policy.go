// Package generation produces platform-specific draft content: short copy,
// long-form articles, image prompts, and rendered images. Remote model
// backends are optional; every operation degrades to a deterministic
// template or placeholder so the pipeline never stalls on an outage.
package generation

import "strings"

var platformAliases = map[string]string{
	"twitter":     "twitter",
	"x":           "twitter",
	"推特":          "twitter",
	"zhihu":       "zhihu",
	"知乎":          "zhihu",
	"juejin":      "juejin",
	"掘金":          "juejin",
	"wechat":      "wechat_blog",
	"wechat_blog": "wechat_blog",
	"公众号":         "wechat_blog",
	"weixin":      "wechat_blog",
	"xiaohongshu": "xiaohongshu",
	"xhs":         "xiaohongshu",
	"小红书":         "xiaohongshu",
}

var longformPlatforms = map[string]bool{
	"wechat_blog": true,
	"zhihu":       true,
	"juejin":      true,
}

// NormalizePlatform maps localized and shorthand platform names onto
// canonical identifiers. Unknown non-empty names pass through unchanged,
// empty input defaults to twitter.
func NormalizePlatform(value string) string {
	raw := strings.ToLower(strings.TrimSpace(value))
	if canonical, ok := platformAliases[raw]; ok {
		return canonical
	}
	if raw == "" {
		return "twitter"
	}
	return raw
}

// StylePolicy describes how drafts for a platform should read.
type StylePolicy struct {
	StylePrompt string
	Tone        string
	Format      string
}

func DraftStylePolicy(platform string) StylePolicy {
	if longformPlatforms[platform] {
		return StylePolicy{
			StylePrompt: "longform_deep_analysis",
			Tone:        "技术解读、影响分析、科普解释，结构化长文",
			Format:      "longform",
		}
	}
	return StylePolicy{
		StylePrompt: "casual_log_style",
		Tone:        "记录、日志、感慨、口语化交流",
		Format:      "shortform",
	}
}

// ImagePolicy returns the aspect ratio and image count for a platform.
// Short-form platforms get a single wide image, long-form platforms get
// multiple tall ones.
func ImagePolicy(platform string) (ratio string, count int) {
	if longformPlatforms[platform] {
		return "3:4", 3
	}
	return "16:9", 1
}
