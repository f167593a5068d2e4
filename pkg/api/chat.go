package api

// AttachedFile is the reference a client sends along with a chat message after
// uploading a file. The backend never reads the file contents; it only embeds
// the name and URL into the outgoing prompt.
type AttachedFile struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

type ChatRequest struct {
	Message            string        `json:"message"`
	IsReasoningEnabled bool          `json:"isReasoningEnabled"`
	AttachedFile       *AttachedFile `json:"attachedFile,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
