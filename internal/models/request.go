package models

// ResourceRef is a client-held reference to a previously uploaded resource.
type ResourceRef struct {
	ID           string `json:"id" binding:"required"`
	RemoteURL    string `json:"remote_url"`
	LocalPreview string `json:"local_preview"`
	ByteSize     int64  `json:"byte_size"`
	MimeType     string `json:"mime_type"`
}

type CreateSessionRequest struct {
	Resources []ResourceRef `json:"resources" binding:"required"`
}

type GenerateRequest struct {
	Prompt      string        `json:"prompt" binding:"required"`
	Attachments []ResourceRef `json:"attachments"`
}
