package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/g-ogaki/assistant-ui-langgraph/internal/session"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/store"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/types"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/upstream"
)

// ThreadHeader reports the resolved thread id on the streamed response so
// the UI can rewrite its location to /thread/{id} without a reload. It is
// exposed through CORS.
const ThreadHeader = "X-Thread-Id"

// Handler exposes the chat transport over HTTP.
type Handler struct {
	orch *Orchestrator
}

func NewHandler(client *upstream.Client, threads *store.ThreadCache) *Handler {
	return &Handler{orch: NewOrchestrator(client, threads)}
}

// RegisterRoutes mounts the chat transport routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.HandleStream)
	r.Get("/chat/threads", h.HandleThreads)
	r.Delete("/chat/threads/{threadID}", h.HandleDeleteThread)
	r.Get("/chat/threads/{threadID}/messages", h.HandleMessages)
	r.Post("/chat/attachments", h.HandleAttachment)
	r.Delete("/chat/attachments/{attachmentID}", h.HandleRemoveAttachment)
}

// HandleStream runs one chat submission: resolve (or create) the thread,
// translate the last message into the upstream query shape, then pipe the
// backend's streamed reply to the browser chunk by chunk. Create-thread
// strictly precedes the send; if it fails nothing is sent and no thread id
// is reported.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}
	guestID := session.GuestID(r.Context())
	query := TranslateQuery(req.Messages[len(req.Messages)-1])

	threadID, created, err := h.orch.EnsureThread(r.Context(), guestID, req.ConversationID, req.ThreadID, query)
	if err != nil {
		log.Printf("[chat] create thread failed for guest %s: %v", guestID, err)
		writeError(w, http.StatusBadGateway, "failed to create thread")
		return
	}

	resp, err := h.orch.SendMessage(r.Context(), guestID, threadID, query)
	if err != nil {
		log.Printf("[chat] send to thread %s failed: %v", threadID, err)
		writeError(w, http.StatusBadGateway, "failed to send message")
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	header.Set(ThreadHeader, threadID)
	header.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if created {
		log.Printf("[chat] new thread %s for guest %s", threadID, guestID)
	}

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			return
		}
	}
}

type threadsResponse struct {
	Threads []upstream.ThreadInfo `json:"threads"`
}

func (h *Handler) HandleThreads(w http.ResponseWriter, r *http.Request) {
	guestID := session.GuestID(r.Context())
	threads, err := h.orch.Threads(r.Context(), guestID)
	if err != nil {
		log.Printf("[chat] list threads failed for guest %s: %v", guestID, err)
		writeError(w, http.StatusBadGateway, "failed to list threads")
		return
	}
	if threads == nil {
		threads = []upstream.ThreadInfo{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(threadsResponse{Threads: threads})
}

func (h *Handler) HandleDeleteThread(w http.ResponseWriter, r *http.Request) {
	guestID := session.GuestID(r.Context())
	threadID := chi.URLParam(r, "threadID")
	if err := h.orch.DeleteThread(r.Context(), guestID, threadID); err != nil {
		log.Printf("[chat] delete thread %s failed: %v", threadID, err)
		writeError(w, http.StatusBadGateway, "failed to delete thread")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	guestID := session.GuestID(r.Context())
	threadID := chi.URLParam(r, "threadID")
	messages, err := h.orch.History(r.Context(), guestID, threadID)
	if err != nil {
		log.Printf("[chat] history for thread %s failed: %v", threadID, err)
		writeError(w, http.StatusBadGateway, "failed to load messages")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(types.MessagesResponse{Messages: messages})
}

func (h *Handler) HandleAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required (field 'file')")
		return
	}
	defer file.Close()

	att, err := IngestAttachment(file, header)
	if err != nil {
		if errors.Is(err, ErrNotImage) {
			writeError(w, http.StatusUnsupportedMediaType, "only image attachments are supported")
			return
		}
		log.Printf("[chat] attachment ingestion failed: %v", err)
		writeError(w, http.StatusBadRequest, "failed to read attachment")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(att)
}

// HandleRemoveAttachment is a no-op: attachments live only in memory on
// the client until they are sent, so there is nothing to release.
func (h *Handler) HandleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg})
}
