package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"virtual-tryon-backend/internal/models"
	"virtual-tryon-backend/internal/orchestrator"
)

type UploadHandler struct {
	uploader *orchestrator.Uploader
}

func NewUploadHandler(uploader *orchestrator.Uploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// Upload accepts one multipart image and returns the server-side reference.
func (h *UploadHandler) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse multipart form",
			Message: err.Error(),
		})
		return
	}

	var file *multipart.FileHeader
	for _, fieldName := range []string{"image", "file", "photo"} {
		if form := c.Request.MultipartForm; form != nil {
			if f := form.File[fieldName]; len(f) > 0 {
				file = f[0]
				break
			}
		}
	}
	if file == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no file uploaded",
			Message: "provide a file under the image, file or photo field",
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to open file", Message: err.Error()})
		return
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read file", Message: err.Error()})
		return
	}

	resource, err := h.uploader.Upload(file.Filename, data, file.Header.Get("Content-Type"))
	if err != nil {
		var uploadErr *orchestrator.UploadError
		if errors.As(err, &uploadErr) {
			status := http.StatusBadGateway
			switch uploadErr.Kind {
			case orchestrator.UploadOversize:
				status = http.StatusRequestEntityTooLarge
			case orchestrator.UploadUnsupportedType:
				status = http.StatusUnsupportedMediaType
			}
			c.JSON(status, models.ErrorResponse{Error: "upload failed", Message: uploadErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "upload failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		ID:           resource.ID,
		RemoteURL:    resource.RemoteURL,
		LocalPreview: resource.LocalPreview,
		ByteSize:     resource.ByteSize,
		MimeType:     resource.MimeType,
	})
}
