package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"virtual-tryon-backend/internal/orchestrator"
	"virtual-tryon-backend/internal/supabase"
)

// FileDownloader fetches result image bytes by URL.
type FileDownloader interface {
	DownloadFile(fileURL string) ([]byte, error)
}

// ArchiveService copies completed result images into Supabase Storage so they
// outlive the Job Backend's pre-signed URLs. Best-effort: failures are logged
// and never affect the generation outcome.
type ArchiveService struct {
	downloader    FileDownloader
	storageClient *supabase.StorageClient
	logger        *slog.Logger
}

func NewArchiveService(downloader FileDownloader, storageClient *supabase.StorageClient, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{
		downloader:    downloader,
		storageClient: storageClient,
		logger:        logger,
	}
}

func (s *ArchiveService) Archive(sessionID string, msg orchestrator.Message) {
	if msg.ResultImageURL == "" {
		return
	}

	data, err := s.downloader.DownloadFile(msg.ResultImageURL)
	if err != nil {
		s.logger.Warn("result download failed", "session_id", sessionID, "error", err)
		return
	}

	filename := fmt.Sprintf("result_%s_%s.jpg", shortID(msg.ID), time.Now().Format("20060102_150405"))

	storagePath, storageURL, err := s.storageClient.UploadFile(sessionID, filename, data, "image/jpeg")
	if err != nil {
		s.logger.Warn("result archive failed", "session_id", sessionID, "error", err)
		return
	}

	s.logger.Info("result archived",
		"session_id", sessionID,
		"storage_path", storagePath,
		"storage_url", storageURL,
		"bytes", len(data),
	)
}

// Cleanup removes every archived file for a torn-down session. Best-effort,
// like Archive.
func (s *ArchiveService) Cleanup(sessionID string) {
	if err := s.storageClient.DeleteSessionFiles(sessionID); err != nil {
		s.logger.Warn("archive cleanup failed", "session_id", sessionID, "error", err)
		return
	}
	s.logger.Info("archived files removed", "session_id", sessionID)
}

func shortID(id string) string {
	if id == "" {
		id = uuid.New().String()
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
