package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SPAHandler serves a prebuilt dashboard bundle. Unknown paths get index.html
// so client side routes survive a reload.
type SPAHandler struct {
	root   string
	files  http.Handler
	logger *zap.Logger
}

// NewSPAHandler serves files under root
func NewSPAHandler(root string, logger *zap.Logger) *SPAHandler {
	return &SPAHandler{
		root:   root,
		files:  http.FileServer(http.Dir(root)),
		logger: logger,
	}
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// unmatched API paths are real 404s, not the app shell
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	full := filepath.Join(h.root, filepath.FromSlash(clean))

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			h.logger.Warn("Static file lookup failed", zap.String("path", clean), zap.Error(err))
		}
		http.ServeFile(w, r, filepath.Join(h.root, "index.html"))
		return
	}

	h.files.ServeHTTP(w, r)
}
