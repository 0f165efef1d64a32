// Package web turns resolver results into HTTP responses: content
// types, cache-busting and CORS headers, 404s, and the request log.
package web

import (
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/fil512/auntruth-sub001/internal/resolver"
)

// Handler serves the document tree described by its Resolver. All
// methods are routed like GET; request bodies are never read.
type Handler struct {
	res    *resolver.Resolver
	logger *log.Logger
}

// NewHandler builds a Handler logging to out (os.Stdout if nil).
func NewHandler(res *resolver.Resolver, out io.Writer) *Handler {
	if out == nil {
		out = os.Stdout
	}
	return &Handler{
		res:    res,
		logger: log.New(out, "", log.LstdFlags),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCommonHeaders(w)

	normalized := h.res.Normalize(r.URL.RequestURI())
	tgt, err := h.res.Resolve(normalized)
	switch {
	case errors.Is(err, resolver.ErrPathEscape):
		// Answer exactly like a missing file; the attempted path stays
		// out of the response.
		h.logger.Printf("blocked escape attempt: %s", r.URL.RequestURI())
		h.notFound(w, r)
	case errors.Is(err, resolver.ErrNotFound):
		h.notFound(w, r)
	case err != nil:
		h.notFound(w, r)
	case tgt.Redirect:
		loc := r.URL.EscapedPath() + "/"
		http.Redirect(w, r, loc, http.StatusMovedPermanently)
		h.logRequest(http.StatusMovedPermanently, r)
	default:
		h.serveFile(w, r, tgt.File)
	}
}

// serveFile streams the resolved file. A file that vanished or became
// unreadable between resolution and open is a 404, never a server
// failure.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		h.logger.Printf("read error for %s: %v", r.URL.Path, err)
		h.notFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypeFor(path))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		// Client went away mid-stream; nothing to answer.
		h.logger.Printf("aborted streaming %s: %v", r.URL.Path, err)
		return
	}
	h.logRequest(http.StatusOK, r)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, "404 not found\n")
	h.logRequest(http.StatusNotFound, r)
}

// setCommonHeaders disables client caching (local edits must show up on
// plain reload) and opens CORS so scripts loaded from one mount can
// fetch assets from the other.
func setCommonHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
}

var (
	paintOK       = color.New(color.FgGreen).SprintFunc()
	paintRedirect = color.New(color.FgYellow).SprintFunc()
	paintMiss     = color.New(color.FgRed).SprintFunc()
)

func (h *Handler) logRequest(code int, r *http.Request) {
	paint := paintMiss
	switch {
	case code < 300:
		paint = paintOK
	case code < 400:
		paint = paintRedirect
	}
	h.logger.Printf("%s %s %s", paint(code), r.Method, r.URL.RequestURI())
}

// contentTypes covers the extensions the legacy tree actually contains;
// anything else falls through to the platform mime table.
var contentTypes = map[string]string{
	".htm":  "text/html",
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
