package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"virtual-tryon-backend/internal/jobrunner"
)

// UploaderAPI is the slice of the Job Backend the uploader needs.
type UploaderAPI interface {
	UploadImage(filename string, data []byte, mimeType string) (*jobrunner.UploadOut, error)
}

// UploadPolicy is caller-supplied validation applied before any network call.
type UploadPolicy struct {
	AllowedMIMETypes []string
	MaxBytes         int64
}

func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		AllowedMIMETypes: []string{
			"image/jpeg", "image/png", "image/webp", "image/heic", "image/heif", "image/mpo",
		},
		MaxBytes: 20 << 20,
	}
}

func (p UploadPolicy) allows(mimeType string) bool {
	for _, allowed := range p.AllowedMIMETypes {
		if mimeType == allowed {
			return true
		}
	}
	return false
}

// Preprocessor transcodes or compresses a payload before validation and
// upload. The uploader only ever sees the final bytes it returns.
type Preprocessor func(data []byte, mimeType string) ([]byte, string, error)

// Uploader turns a local binary into a server-side UploadedResource.
// Stateless; one request per call.
type Uploader struct {
	api        UploaderAPI
	policy     UploadPolicy
	preprocess Preprocessor
	logger     *slog.Logger
}

// NewUploader creates an uploader. preprocess may be nil.
func NewUploader(api UploaderAPI, policy UploadPolicy, preprocess Preprocessor, logger *slog.Logger) *Uploader {
	return &Uploader{
		api:        api,
		policy:     policy,
		preprocess: preprocess,
		logger:     logger,
	}
}

// Upload validates and ships one payload. On rejection the returned error is a
// classified *UploadError; validation rejections make no network call.
func (u *Uploader) Upload(filename string, data []byte, mimeType string) (*UploadedResource, error) {
	if mimeType == "" {
		mimeType = sniffMimeType(filename)
	}

	if u.preprocess != nil {
		processed, processedType, err := u.preprocess(data, mimeType)
		if err != nil {
			return nil, &UploadError{Kind: UploadUnsupportedType, Filename: filename, Reason: fmt.Sprintf("preprocessing failed: %v", err)}
		}
		data, mimeType = processed, processedType
	}

	if !u.policy.allows(mimeType) {
		return nil, &UploadError{Kind: UploadUnsupportedType, Filename: filename, Reason: fmt.Sprintf("mime type %s is not allowed", mimeType)}
	}
	if u.policy.MaxBytes > 0 && int64(len(data)) > u.policy.MaxBytes {
		return nil, &UploadError{
			Kind:     UploadOversize,
			Filename: filename,
			Reason:   fmt.Sprintf("payload is %d bytes, limit is %d", len(data), u.policy.MaxBytes),
		}
	}

	out, err := u.api.UploadImage(filename, data, mimeType)
	if err != nil {
		var apiErr *jobrunner.APIError
		if errors.As(err, &apiErr) {
			return nil, &UploadError{Kind: UploadServer, Filename: filename, Reason: apiErr.Error()}
		}
		return nil, &UploadError{Kind: UploadNetwork, Filename: filename, Reason: err.Error()}
	}

	u.logger.Info("uploaded resource",
		"resource_id", out.ID,
		"bytes", out.ByteSize,
		"mime_type", out.MimeType,
	)

	return &UploadedResource{
		ID:           out.ID,
		RemoteURL:    out.RemoteURL,
		LocalPreview: filename,
		ByteSize:     out.ByteSize,
		MimeType:     out.MimeType,
	}, nil
}

func sniffMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".mpo":
		return "image/mpo"
	default:
		return "image/jpeg"
	}
}
