package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

type evidenceStorage interface {
	SaveStream(name string, r io.Reader) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type evidenceSigner interface {
	Generate(objectID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (objectID, relPath string, expiresAt time.Time, err error)
}

// EvidenceUpload wraps an incoming evidence blob.
type EvidenceUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// EvidenceDownload is an opened evidence object ready to stream.
type EvidenceDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// EvidenceServiceConfig tunes evidence validation.
type EvidenceServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// EvidenceService stores complaint photos and resolution proofs and hands out signed links.
type EvidenceService struct {
	storage evidenceStorage
	signer  evidenceSigner
	cfg     EvidenceServiceConfig
	logger  *zap.Logger
	now     func() time.Time
	allowed []string
}

// NewEvidenceService constructs an EvidenceService.
func NewEvidenceService(storage evidenceStorage, signer evidenceSigner, cfg EvidenceServiceConfig, logger *zap.Logger) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	allowed := make([]string, 0, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			allowed = append(allowed, m)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"image/jpeg", "image/png", "image/webp"}
	}
	return &EvidenceService{
		storage: storage,
		signer:  signer,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		allowed: allowed,
	}
}

// Upload validates and persists an evidence blob, returning its reference and a signed link.
func (s *EvidenceService) Upload(ctx context.Context, upload EvidenceUpload, actor models.Actor) (*models.EvidenceObject, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "evidence storage unavailable")
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	detected, err := mimetype.DetectReader(upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	mimeType, ok := s.match(detected)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", detected.String()))
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}

	id := uuid.NewString()
	now := s.now().UTC()
	name := fmt.Sprintf("evidence/%04d/%02d/%s%s", now.Year(), int(now.Month()), id, detected.Extension())
	ref, err := s.storage.SaveStream(name, io.LimitReader(upload.Content, s.cfg.MaxFileSize))
	if err != nil {
		s.logger.Error("failed to persist evidence", zap.String("name", name), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist evidence file")
	}

	token, expiresAt, err := s.signer.Generate(id, ref)
	if err != nil {
		_ = s.storage.Delete(ref)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign evidence link")
	}
	s.logger.Info("evidence stored",
		zap.String("ref", ref),
		zap.String("mime", mimeType),
		zap.Int64("size", upload.Size),
		zap.String("uploaded_by", actor.ID),
	)
	return &models.EvidenceObject{
		Ref:         ref,
		MimeType:    mimeType,
		SizeBytes:   upload.Size,
		DownloadURL: s.downloadURL(token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Link issues a fresh signed URL for an existing evidence reference.
func (s *EvidenceService) Link(ref string) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" || !strings.HasPrefix(ref, "evidence/") {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid evidence reference")
	}
	id := strings.TrimSuffix(path.Base(ref), path.Ext(ref))
	token, expiresAt, err := s.signer.Generate(id, ref)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign evidence link")
	}
	return s.downloadURL(token), expiresAt, nil
}

// Download validates token and opens the referenced object.
func (s *EvidenceService) Download(ctx context.Context, token string) (*EvidenceDownload, error) {
	if s.signer == nil || s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	if strings.TrimSpace(token) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token is required")
	}
	id, ref, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if !strings.HasPrefix(path.Base(ref), id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open evidence file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read evidence metadata")
	}
	detected, err := mimetype.DetectReader(file)
	if err == nil {
		_, err = file.Seek(0, io.SeekStart)
	}
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect evidence file")
	}
	return &EvidenceDownload{
		File:      file,
		Filename:  path.Base(ref),
		MimeType:  detected.String(),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *EvidenceService) match(detected *mimetype.MIME) (string, bool) {
	for _, allowed := range s.allowed {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return "", false
}

func (s *EvidenceService) downloadURL(token string) string {
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/evidence/download?token=%s", base, token)
}
