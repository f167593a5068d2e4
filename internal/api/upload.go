package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"deepchat-backend/internal/storage"
	"deepchat-backend/pkg/api"
)

const maxUploadBytes = 10 << 20

type UploadService struct {
	files *storage.FileStore
}

func NewUploadService(files *storage.FileStore) *UploadService {
	return &UploadService{files: files}
}

func (s *UploadService) AddRoutes(r chi.Router) {
	r.Post("/upload", RestHandler(s.Upload))
}

func (s *UploadService) Upload(r *http.Request) (any, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("error reading uploaded file from request", "error", err)
		return nil, CodedErrorf(http.StatusBadRequest, "No file provided")
	}
	defer file.Close()

	info, err := s.files.SaveFile(header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		slog.Error("error saving uploaded file", "file_name", header.Filename, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "File upload failed")
	}

	return api.UploadResponse{
		Success: true,
		Data:    info,
		Message: "File uploaded successfully",
	}, nil
}
