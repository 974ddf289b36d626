// Package vendors holds the static classification tables: vendor inference
// from model names, channel-type inference from supported endpoint kinds,
// endpoint default paths, and the text-model heuristic. Everything here is a
// pure function over lookup data.
package vendors

import (
	"strings"
)

// vendorPattern maps a model-name substring to the vendor that publishes it.
// Patterns are checked in order; first match wins.
type vendorPattern struct {
	pattern string
	vendor  string
}

var vendorPatterns = []vendorPattern{
	{"gpt-", "openai"},
	{"o1", "openai"},
	{"o3", "openai"},
	{"o4", "openai"},
	{"chatgpt", "openai"},
	{"dall-e", "openai"},
	{"whisper", "openai"},
	{"tts-", "openai"},
	{"text-embedding", "openai"},
	{"claude", "anthropic"},
	{"gemini", "google"},
	{"gemma", "google"},
	{"palm", "google"},
	{"deepseek", "deepseek"},
	{"qwen", "alibaba"},
	{"qwq", "alibaba"},
	{"llama", "meta"},
	{"mistral", "mistral"},
	{"mixtral", "mistral"},
	{"grok", "xai"},
	{"command", "cohere"},
	{"glm", "zhipu"},
	{"chatglm", "zhipu"},
	{"moonshot", "moonshot"},
	{"kimi", "moonshot"},
	{"doubao", "bytedance"},
	{"ernie", "baidu"},
	{"hunyuan", "tencent"},
	{"spark", "iflytek"},
	{"yi-", "01ai"},
}

// vendorAliases maps canonical vendor names to the non-English labels some
// targets use for the same vendor record.
var vendorAliases = map[string][]string{
	"openai":    {"OpenAI"},
	"anthropic": {"Anthropic"},
	"google":    {"Google", "谷歌"},
	"alibaba":   {"阿里", "阿里云", "通义千问"},
	"zhipu":     {"智谱", "智谱清言"},
	"baidu":     {"百度", "文心一言"},
	"tencent":   {"腾讯", "混元"},
	"bytedance": {"字节", "豆包"},
	"iflytek":   {"讯飞", "讯飞星火"},
	"moonshot":  {"月之暗面"},
	"deepseek":  {"深度求索"},
}

// Infer returns the vendor publishing the given model, inferring from the
// model name. Returns "" when no pattern matches.
func Infer(model string) string {
	lower := strings.ToLower(model)
	for _, vp := range vendorPatterns {
		if strings.Contains(lower, vp.pattern) {
			return vp.vendor
		}
	}
	return ""
}

// Aliases returns the known display labels for a canonical vendor name,
// including the name itself.
func Aliases(vendor string) []string {
	out := []string{vendor}
	return append(out, vendorAliases[vendor]...)
}

// nonTextPatterns excludes models that cannot serve a chat probe.
var nonTextPatterns = []string{
	"embedding",
	"embed-",
	"tts",
	"whisper",
	"audio",
	"dall-e",
	"flux",
	"stable-diffusion",
	"sd3",
	"image",
	"midjourney",
	"mj-",
	"moderation",
	"rerank",
	"search",
	"video",
	"sora",
	"veo",
	"suno",
}

// IsTextModel reports whether a model can serve text generation. When the
// upstream published endpoint kinds the answer is authoritative; otherwise
// it falls back to the name-pattern heuristic.
func IsTextModel(model string, endpoints []string) bool {
	if len(endpoints) > 0 {
		for _, ep := range endpoints {
			switch ep {
			case EndpointChatCompletions, EndpointResponses, EndpointAnthropicMessages, EndpointGeminiGenerate:
				return true
			}
		}
		return false
	}

	lower := strings.ToLower(model)
	for _, p := range nonTextPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}
