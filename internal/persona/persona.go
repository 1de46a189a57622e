// Package persona holds the assistant's prompt and canned-reply texts.
// Operators can override any field from a YAML file; unset fields keep
// the compiled-in defaults.
package persona

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Persona is the set of texts that shape the assistant's behavior.
type Persona struct {
	// SystemPrompt is the instruction for the plain conversational path.
	SystemPrompt string `yaml:"systemPrompt"`
	// SearchPrompt is the summarization instruction for the
	// retrieval-augmented path.
	SearchPrompt string `yaml:"searchPrompt"`
	// Greeting is returned by the health endpoint.
	Greeting string `yaml:"greeting"`
	// FallbackReply is posted when the model call fails.
	FallbackReply string `yaml:"fallbackReply"`
	// SearchFallbackReply is posted when the retrieval path produces nothing.
	SearchFallbackReply string `yaml:"searchFallbackReply"`
}

// Default returns the built-in persona.
func Default() *Persona {
	return &Persona{
		SystemPrompt: "You are a helpful assistant. Answer all questions to the best of your ability. " +
			"Format your responses using Slack's markdown syntax: *bold* for bold, _italic_ for italic, " +
			"`code` for code, and use • for bullet points.",
		SearchPrompt: "You summarize web search results for a chat user. Read every result, " +
			"extract the key facts, cite result titles when you rely on them, and call out " +
			"uncertainty or conflicting information explicitly. Answer in 3-5 sentences.",
		Greeting:            "Hello, I'm the relaybot assistant!",
		FallbackReply:       "Sorry, I ran into a problem while generating a reply. Please try again.",
		SearchFallbackReply: "Sorry, I couldn't find any relevant information for that. Try rephrasing your query.",
	}
}

// Load reads a persona overlay from the given YAML file. An empty path
// returns the defaults unchanged; fields absent from the file keep their
// default values.
func Load(path string, logger *slog.Logger) (*Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	logger.Info("loaded persona overlay", "path", path)
	return p, nil
}
