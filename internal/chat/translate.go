package chat

import (
	"github.com/g-ogaki/assistant-ui-langgraph/internal/types"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/upstream"
)

// Part types the translator understands. Anything else (tool calls and
// friends) is dropped silently until the backend grows support for them.
const (
	PartText  = "text"
	PartImage = "image"
)

// RoleUser and RoleAssistant are the UI-facing roles history converts to.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type textEntry struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imageURL struct {
	URL string `json:"url"`
}

type imageEntry struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

// TranslateQuery rewrites a UI message into the upstream query shape.
// A message with exactly one part that is text collapses to the raw
// string; anything else becomes an ordered array of typed entries.
func TranslateQuery(msg types.Message) any {
	if len(msg.Parts) == 1 && msg.Parts[0].Type == PartText {
		return msg.Parts[0].Text
	}
	entries := make([]any, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Type {
		case PartText:
			entries = append(entries, textEntry{Type: "text", Text: p.Text})
		case PartImage:
			entries = append(entries, imageEntry{Type: "image_url", ImageURL: imageURL{URL: p.Image}})
		}
	}
	return entries
}

// ConvertHistory maps stored backend messages to the UI shape: type
// "human" becomes role "user", everything else "assistant", each rendered
// as a single text part.
func ConvertHistory(stored []upstream.StoredMessage) []types.Message {
	out := make([]types.Message, 0, len(stored))
	for _, m := range stored {
		role := RoleAssistant
		if m.Type == "human" {
			role = RoleUser
		}
		out = append(out, types.Message{
			ID:    m.ID,
			Role:  role,
			Parts: []types.Part{{Type: PartText, Text: m.Content}},
		})
	}
	return out
}
