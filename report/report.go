// Package report stores the reports healthprofessionals write about filled
// in questionnaires. The report text, and an optional attachment, are
// encrypted with the personal key of the healthprofessional who created
// the report.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/account"
	"github.com/hengadev/remotecare/audit"
	"gorm.io/gorm"
)

var (
	ErrReportNotFound      = errors.New("report not found")
	ErrUnfilledPlaceholder = errors.New("placeholder not filled in")
	ErrNoAttachment        = errors.New("report has no attachment")
	ErrFinished            = errors.New("report already finished")
)

// Placeholders are the template markers that must be replaced before a
// report is saved.
var Placeholders = []string{
	"--Vul aanvullend onderzoek in--",
	"--Vul conclusie in--",
	"--Vul beleid in-",
	"--Vul crp waarde in--",
	"--Vul CRP waarde in--",
	"--Vul fecaal calprotectine in--",
	"--Vul reactie hier in--",
}

type Report struct {
	ID                     uint      `gorm:"primaryKey"`
	QuestionnaireRequestID uint      `gorm:"index"`
	CreatedByID            uint      `gorm:"index"`
	KeyID                  uuid.UUID `gorm:"not null" audit:"-"`
	CreatedOn              time.Time
	FinishedOn             *time.Time

	Invalid                 bool
	SentToDoctor            bool
	PatientNeedsAppointment bool

	Text          string `gorm:"-" rc:"encrypt"`
	TextEncrypted string

	AttachmentKey string

	audit.State `gorm:"-"`
}

// EncryptionKeyID is the personal key of the author.
func (r *Report) EncryptionKeyID() uuid.UUID { return r.KeyID }

func (r *Report) FilledIn() bool { return r.FinishedOn != nil }

// ValidateText returns ErrUnfilledPlaceholder naming the first template
// marker left in text.
func ValidateText(text string) error {
	for _, p := range Placeholders {
		if strings.Contains(text, p) {
			return fmt.Errorf("%w: %q", ErrUnfilledPlaceholder, p)
		}
	}
	return nil
}

// Attachments stores encrypted files. providers/s3 implements it.
type Attachments interface {
	Upload(ctx context.Context, keyID uuid.UUID, src io.Reader, contentType string) (string, error)
	Download(ctx context.Context, keyID uuid.UUID, key string, dst io.Writer) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	db          *gorm.DB
	attachments Attachments
	logger      *slog.Logger
	now         func() time.Time
}

// NewService returns a Service on db, which must have the gormrc plugin
// installed. attachments may be nil when reports carry no files.
func NewService(db *gorm.DB, attachments Attachments, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:          db,
		attachments: attachments,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Report{})
}

// Create stores r written by author. The text is encrypted with the
// author's personal key.
func (s *Service) Create(ctx context.Context, r *Report, author *account.User) error {
	if author == nil || author.KeyID == uuid.Nil {
		return fmt.Errorf("%w: report author without personal key", remotecare.ErrMissingEncryptionKey)
	}
	if err := ValidateText(r.Text); err != nil {
		return err
	}
	r.CreatedByID = author.ID
	r.KeyID = author.KeyID
	r.CreatedOn = s.now()
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Service) Update(ctx context.Context, r *Report) error {
	if err := ValidateText(r.Text); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(r).Error
}

// Finish marks r as handled.
func (s *Service) Finish(ctx context.Context, r *Report) error {
	if r.FilledIn() {
		return ErrFinished
	}
	now := s.now()
	r.FinishedOn = &now
	return s.Update(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uint) (*Report, error) {
	var r Report
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &r, nil
}

// ForQuestionnaire returns the valid reports of a questionnaire request,
// oldest first.
func (s *Service) ForQuestionnaire(ctx context.Context, requestID uint) ([]Report, error) {
	var reports []Report
	err := s.db.WithContext(ctx).
		Where("questionnaire_request_id = ? AND invalid = ?", requestID, false).
		Order("created_on, id").
		Find(&reports).Error
	return reports, err
}

// Attach encrypts src with the author's key, stores it and replaces the
// previous attachment of r.
func (s *Service) Attach(ctx context.Context, r *Report, src io.Reader, contentType string) error {
	if s.attachments == nil {
		return fmt.Errorf("%w: no attachment store configured", remotecare.ErrInvalidConfiguration)
	}
	key, err := s.attachments.Upload(ctx, r.KeyID, src, contentType)
	if err != nil {
		return fmt.Errorf("upload attachment: %w", err)
	}
	previous := r.AttachmentKey
	r.AttachmentKey = key
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		r.AttachmentKey = previous
		if derr := s.attachments.Delete(ctx, key); derr != nil {
			s.logger.WarnContext(ctx, "remove orphaned attachment", "key", key, "error", derr)
		}
		return err
	}
	if previous != "" {
		if err := s.attachments.Delete(ctx, previous); err != nil {
			s.logger.WarnContext(ctx, "remove replaced attachment", "key", previous, "error", err)
		}
	}
	return nil
}

// Attachment writes the decrypted attachment of r to dst.
func (s *Service) Attachment(ctx context.Context, r *Report, dst io.Writer) error {
	if r.AttachmentKey == "" {
		return ErrNoAttachment
	}
	if s.attachments == nil {
		return fmt.Errorf("%w: no attachment store configured", remotecare.ErrInvalidConfiguration)
	}
	return s.attachments.Download(ctx, r.KeyID, r.AttachmentKey, dst)
}
