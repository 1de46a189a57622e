package agent

import "strings"

// defaultRetrievalKeywords mark a message as asking about something
// time-sensitive that the model alone cannot answer.
var defaultRetrievalKeywords = []string{
	"recent", "search", "update", "now", "latest", "news", "current",
}

// Router decides whether a message takes the retrieval-augmented path or
// the plain conversational path.
type Router struct {
	keywords []string // pre-computed lowercase
}

// NewRouter creates a router over the given trigger keywords. An empty
// list selects the default set.
func NewRouter(keywords []string) *Router {
	if len(keywords) == 0 {
		keywords = defaultRetrievalKeywords
	}
	lower := make([]string, len(keywords))
	for i, kw := range keywords {
		lower[i] = strings.ToLower(kw)
	}
	return &Router{keywords: lower}
}

// NeedsRetrieval reports whether the text contains any trigger keyword,
// case-insensitively, as a substring.
func (r *Router) NeedsRetrieval(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
