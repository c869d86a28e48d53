package http

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/storage"
)

// FileHandler serves evidence images kept by the local storage backend.
type FileHandler struct {
	store storage.StorageInterface
}

func NewFileHandler(store storage.StorageInterface) *FileHandler {
	return &FileHandler{store: store}
}

// HandleDownload streams the object named by the {key} route variable.
func (h *FileHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		http.Error(w, "Missing key", http.StatusBadRequest)
		return
	}

	file, err := h.store.ReadFile(r.Context(), key)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	contentType := "application/octet-stream"
	switch filepath.Ext(key) {
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	case ".gif":
		contentType = "image/gif"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := io.Copy(w, file); err != nil {
		logger.Warn("Failed to stream file", "key", key, "error", err)
	}
}
