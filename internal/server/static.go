package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// handleEnvJS serves the browser client's runtime configuration.
func (s *Server) handleEnvJS(w http.ResponseWriter, r *http.Request) {
	cfg, err := json.Marshal(map[string]string{
		"backendUrl": strings.TrimSuffix(s.backendURL, "/"),
	})
	if err != nil {
		httpError(w, r, http.StatusInternalServerError, CodeInternal, "internal error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, "window.SCREEN_AUDIT_CONFIG = %s;\n", cfg)
}

// staticHandler serves the embedded client. Unknown paths fall back to
// index.html.
func (s *Server) staticHandler() http.Handler {
	fileServer := http.FileServer(http.FS(s.assets))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path != "/" {
			f, err := s.assets.Open(strings.TrimPrefix(path, "/"))
			if err != nil {
				r.URL.Path = "/"
			} else {
				f.Close()
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}
