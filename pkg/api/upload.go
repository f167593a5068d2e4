package api

import "time"

type FileInfo struct {
	FileID     string    `json:"fileId"`
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	FileSize   int64     `json:"fileSize"`
	FileExt    string    `json:"fileExt"` // lowercase, without the dot
	MimeType   string    `json:"mimeType"`
	UploadTime time.Time `json:"uploadTime"`
}

type UploadResponse struct {
	Success bool     `json:"success"`
	Data    FileInfo `json:"data"`
	Message string   `json:"message"`
}
