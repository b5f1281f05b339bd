package httpserver

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hustlex/internal/config"
	"hustlex/internal/domain"
)

// AttachmentRoutes returns a sub-router mounted at /api/messages/attachments.
//   - POST /           stores the multipart "file" field and returns its FileMeta
//   - GET /{filename}  serves a stored file from cfg.UploadDir
func AttachmentRoutes(cfg *config.Config, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to parse multipart form"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file"})
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file must have an extension"})
			return
		}

		filename := uuid.NewString() + ext
		size, err := saveUpload(filepath.Join(cfg.UploadDir, filename), file)
		if err != nil {
			logger.Error("save attachment", slog.String("file", filename), slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not save file"})
			return
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = mime.TypeByExtension(ext)
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		writeJSON(w, http.StatusCreated, domain.FileMeta{
			Name:       header.Filename,
			Size:       size,
			MimeType:   mimeType,
			ContentRef: "/api/messages/attachments/" + filename,
		})
	})

	r.Get("/{filename}", func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		// Prevent path traversal by not allowing separators.
		if filename == "" || filename == ".." || filepath.Base(filename) != filename {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid filename"})
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.UploadDir, filename))
	})

	return r
}

// saveUpload writes src to path. A partially written file is removed.
func saveUpload(path string, src io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return size, nil
}
