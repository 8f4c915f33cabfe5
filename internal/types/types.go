package types

// Part is one atomic unit of a chat message as the UI represents it.
// Image parts carry a data URL produced by attachment ingestion.
type Part struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Message is an ordered sequence of parts with a UI-facing role.
type Message struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type ChatRequest struct {
	ConversationID string    `json:"conversationId"`
	ThreadID       string    `json:"threadId,omitempty"`
	Messages       []Message `json:"messages"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

type AttachmentResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
