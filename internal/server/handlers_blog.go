package server

import (
	"net/http"
	"strings"

	"goldchecker/internal/backend"
)

// handleBlogPosts handles GET /api/blog/posts, forwarding the query string.
func (s *Server) handleBlogPosts(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	noStore(w)

	resp, err := s.content.BlogPosts(r.Context(), r.URL.Query())
	s.writeProxy(w, resp, err)
}

// handleBlogPost handles GET /api/blog/post?slug=.
func (s *Server) handleBlogPost(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	noStore(w)

	slug := strings.TrimSpace(r.URL.Query().Get("slug"))
	if slug == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "Missing slug", "missing_slug")
		return
	}
	resp, err := s.content.BlogPost(r.Context(), slug)
	s.writeProxy(w, resp, err)
}

// writeProxy relays the upstream response verbatim, or answers 502 when no
// upstream response was obtained.
func (s *Server) writeProxy(w http.ResponseWriter, resp *backend.ProxyResponse, err error) {
	if err != nil || resp == nil {
		s.logger.Warn().Err(err).Msg("blog upstream fetch failed")
		WriteErrorWithCode(w, http.StatusBadGateway, "Upstream fetch failed", "upstream")
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}
