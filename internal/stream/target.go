package stream

import (
	"net/url"
	"strings"
)

const (
	DefaultBaseURL  = "http://localhost:8080"
	DefaultEndpoint = "/message/chat/stream/history"

	ParamPrompt    = "prompt"
	ParamSessionID = "sessionId"
)

// BuildTarget appends the url-encoded prompt and session id to the endpoint.
// Values are passed through unvalidated.
func BuildTarget(baseURL, endpoint, sessionID, prompt string) string {
	q := url.Values{}
	q.Set(ParamPrompt, prompt)
	q.Set(ParamSessionID, sessionID)
	return strings.TrimRight(baseURL, "/") + endpoint + "?" + q.Encode()
}
