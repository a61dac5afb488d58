package preview

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/docsmith/docsmith/internal/log"
)

// fileServer serves the built HTML tree with checks against path traversal,
// symlink escapes and method abuse. Directory paths resolve to their
// index.html; bare directory paths redirect to the trailing-slash form so
// relative links inside the page work.
func (s *Server) fileServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		logger := log.FromContext(r.Context())

		upath := r.URL.Path
		if isPathTraversal(upath) {
			logger.Warn().
				Str("event", "file_req.denied").
				Str("reason", "path_escape").
				Msg("detected traversal sequence")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if upath == "" || strings.HasSuffix(upath, "/") {
			upath += "index.html"
		}

		root, err := filepath.Abs(s.cfg.Root)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			if os.IsNotExist(err) {
				http.Error(w, "No built documentation; run a build first", http.StatusNotFound)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		realPath, err := filepath.EvalSymlinks(filepath.Join(root, filepath.FromSlash(upath)))
		if err != nil {
			if os.IsNotExist(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Containment check via filepath.Rel catches symlink escapes that
		// string prefix checks miss.
		rel, err := filepath.Rel(realRoot, realPath)
		if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			logger.Warn().
				Str("event", "file_req.denied").
				Str("resolved", realPath).
				Str("reason", "path_escape").
				Msg("path escapes the document root")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		info, err := os.Stat(realPath)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if info.IsDir() {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}

		f, err := os.Open(realPath)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		// Weak ETag from modtime and size lets browsers revalidate cheaply;
		// no-cache forces the revalidation, so a rebuild shows up on reload.
		etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// isPathTraversal checks a request path for traversal attempts. It decodes
// repeatedly to catch double encodings, normalises unicode, and rejects NUL
// bytes and overlong dot encodings.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		} else if d, err := url.QueryUnescape(decoded); err == nil {
			decoded = d
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	for _, pat := range []string{"..", "%00", "%c0%ae", "%e0%80%ae"} {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}
	return strings.Contains(strings.ToLower(norm.NFC.String(decoded)), "..")
}
