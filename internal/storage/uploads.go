package storage

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"deepchat-backend/pkg/api"
)

// FileStore saves uploaded files into a local directory and returns the
// descriptor the chat endpoint consumes. Everything past this boundary treats
// the descriptor as opaque.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("could not create upload directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Dir() string {
	return f.dir
}

// SaveFile writes the uploaded contents under a fresh uuid-based name, so two
// uploads with the same original name never collide.
func (f *FileStore) SaveFile(originalName, contentType string, data io.Reader) (api.FileInfo, error) {
	fileID := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(originalName))
	storedName := fileID + ext

	dst, err := os.Create(filepath.Join(f.dir, storedName))
	if err != nil {
		return api.FileInfo{}, fmt.Errorf("could not create upload file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, data)
	if err != nil {
		return api.FileInfo{}, fmt.Errorf("could not write upload file: %w", err)
	}

	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return api.FileInfo{
		FileID:     fileID,
		FileName:   originalName,
		FileURL:    "/uploads/" + storedName,
		FileSize:   size,
		FileExt:    strings.TrimPrefix(ext, "."),
		MimeType:   contentType,
		UploadTime: time.Now(),
	}, nil
}
