package vendors

import "github.com/agentstation/gatesync/pkg/catalog"

// Endpoint kinds as published by upstreams in model capability lists.
const (
	EndpointChatCompletions   = "openai"
	EndpointResponses         = "openai-response"
	EndpointAnthropicMessages = "anthropic"
	EndpointGeminiGenerate    = "gemini"
)

// endpointPaths maps an endpoint kind to its default request path.
var endpointPaths = map[string]string{
	EndpointChatCompletions:   "/v1/chat/completions",
	EndpointResponses:         "/v1/responses",
	EndpointAnthropicMessages: "/v1/messages",
	EndpointGeminiGenerate:    "/v1beta/models/{model}:generateContent",
}

// DefaultPath returns the default request path for an endpoint kind.
func DefaultPath(endpoint string) string {
	return endpointPaths[endpoint]
}

// EndpointMap builds the per-endpoint path map stored on a target model
// record for the endpoint kinds a model supports.
func EndpointMap(endpoints []string) map[string]string {
	if len(endpoints) == 0 {
		return nil
	}
	out := make(map[string]string, len(endpoints))
	for _, ep := range endpoints {
		if path, ok := endpointPaths[ep]; ok {
			out[ep] = path
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// channelTypePreference orders endpoint kinds by how specific their dialect
// is; a group supporting a native dialect is typed to it rather than to the
// generic chat-completions fallback.
var channelTypePreference = []struct {
	endpoint string
	channel  catalog.ChannelType
}{
	{EndpointAnthropicMessages, catalog.ChannelTypeAnthropic},
	{EndpointGeminiGenerate, catalog.ChannelTypeGemini},
	{EndpointResponses, catalog.ChannelTypeOpenAIResponses},
	{EndpointChatCompletions, catalog.ChannelTypeOpenAI},
}

// ChannelTypeForEndpoints infers the channel type for a group from the
// endpoint kinds its models support. Defaults to the OpenAI dialect when
// nothing is known.
func ChannelTypeForEndpoints(endpoints []string) catalog.ChannelType {
	supported := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		supported[ep] = true
	}
	for _, pref := range channelTypePreference {
		if supported[pref.endpoint] {
			return pref.channel
		}
	}
	return catalog.ChannelTypeOpenAI
}
