// Package proxy forwards browser API calls to the upstream backend,
// injecting the trusted guest identity header on the way through.
package proxy

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/g-ogaki/assistant-ui-langgraph/internal/session"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/types"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/upstream"
)

// Methods lists every HTTP method the catch-all mount accepts.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// Handler is the catch-all reverse proxy mounted under /api/*.
type Handler struct {
	upstreamBase string
	httpClient   *http.Client
}

// NewHandler creates a proxy for the given upstream base URL. The client
// carries no timeout: proxied bodies may be long-lived streams and the
// request context handles cancellation.
func NewHandler(upstreamBase string) *Handler {
	return &Handler{
		upstreamBase: strings.TrimSuffix(upstreamBase, "/"),
		httpClient:   &http.Client{},
	}
}

// ServeHTTP forwards the captured path, query, headers and body verbatim,
// with two rewrites: the host header is dropped (it targets this server)
// and x-guest-id is set from the resolved session, overwriting whatever
// the client sent. Any local failure becomes a uniform 502; this is the
// single recovery boundary for the proxy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	target := h.upstreamBase + "/" + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		log.Printf("[proxy] %s /%s: building upstream request failed: %v", r.Method, path, err)
		writeProxyError(w)
		return
	}
	req.Header = r.Header.Clone()
	req.Header.Del("Host")
	req.Header.Set(upstream.GuestHeader, session.GuestID(r.Context()))
	// Hand the inbound body straight through so uploads stream.
	req.ContentLength = r.ContentLength

	resp, err := h.httpClient.Do(req)
	if err != nil {
		log.Printf("[proxy] %s /%s: upstream call failed: %v", r.Method, path, err)
		writeProxyError(w)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	// Proxied traffic is always dynamic.
	header.Set("Cache-Control", "no-store")
	w.WriteHeader(resp.StatusCode)
	streamCopy(w, resp.Body)
}

// streamCopy copies chunk by chunk, flushing after each write so upstream
// chunk timing survives to the browser.
func streamCopy(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func writeProxyError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "Upstream Proxy Error"})
}
