package util

import (
	"net/http"
	"strings"
)

// mountedWriter prepends the mount prefix to absolute redirect locations, so handlers can redirect to "/x" without knowing where they are mounted.
type mountedWriter struct {
	http.ResponseWriter
	prefix string // without trailing slash
}

func (w *mountedWriter) WriteHeader(statusCode int) {
	if w.prefix != "" && statusCode >= 300 && statusCode < 400 {
		if location := w.Header().Get("Location"); strings.HasPrefix(location, "/") && !strings.HasPrefix(location, "//") {
			w.Header().Set("Location", w.prefix+location)
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Unwrap is used by http.ResponseController.
func (w *mountedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// HandlePrefix mounts handler below prefix. The handler sees paths with the prefix stripped. A request for the prefix itself is redirected to prefix + "/".
func HandlePrefix(mux *http.ServeMux, prefix string, handler http.Handler) {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" {
		mux.Handle(prefix, http.RedirectHandler(prefix+"/", http.StatusMovedPermanently))
	}
	mux.Handle(prefix+"/", http.StripPrefix(prefix, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		handler.ServeHTTP(&mountedWriter{w, prefix}, req)
	})))
}
