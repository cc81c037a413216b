package certificates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/learnhub-app/learnhub-backend/pkg/db"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/outbox"
)

// Service exposes certificate issuance and verification.
type Service interface {
	// IssueIfAbsent creates the user's certificate for a course inside
	// the caller's transaction. Redundant calls resolve to the existing
	// certificate without error.
	IssueIfAbsent(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*models.Certificate, error)
	Verify(ctx context.Context, credentialID string) (*VerificationDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]CertificateDTO, error)
}

type certificateRepository interface {
	CreateWithTx(tx *gorm.DB, cert *models.Certificate) error
	FindByUserAndCourseWithTx(tx *gorm.DB, userID, courseID uuid.UUID) (*models.Certificate, error)
	FindByCredentialID(ctx context.Context, credentialID string) (*VerificationRow, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]OwnedRow, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   certificateRepository
	outbox outboxEmitter
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo   certificateRepository
	Outbox outboxEmitter
}

// NewService constructs a certificate service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("certificate repository is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	return &service{repo: params.Repo, outbox: params.Outbox}, nil
}

// certificateIssuedPayload is the outbox data for certificate.issued.
type certificateIssuedPayload struct {
	UserID       uuid.UUID `json:"user_id"`
	CourseID     uuid.UUID `json:"course_id"`
	CredentialID string    `json:"credential_id"`
}

func (s *service) IssueIfAbsent(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*models.Certificate, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}

	existing, err := s.repo.FindByUserAndCourseWithTx(tx, userID, courseID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check certificate")
	}

	cert := &models.Certificate{
		ID:           uuid.New(),
		UserID:       userID,
		CourseID:     courseID,
		CredentialID: uuid.NewString(),
		IssuedAt:     time.Now(),
	}
	// Postgres aborts the whole transaction on a constraint violation,
	// so the insert runs under a savepoint to keep the caller's
	// transaction usable when a concurrent completion wins the race.
	if err := tx.SavePoint("issue_certificate").Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue certificate")
	}
	if err := s.repo.CreateWithTx(tx, cert); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_certificates_user_course") {
			if err := tx.RollbackTo("issue_certificate").Error; err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recover certificate race")
			}
			existing, err := s.repo.FindByUserAndCourseWithTx(tx, userID, courseID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load winning certificate")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue certificate")
	}

	err = s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventCertificateIssued,
		AggregateType: enums.OutboxAggregateCertificate,
		AggregateID:   cert.ID,
		Data: certificateIssuedPayload{
			UserID:       userID,
			CourseID:     courseID,
			CredentialID: cert.CredentialID,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit certificate event")
	}
	return cert, nil
}

func (s *service) Verify(ctx context.Context, credentialID string) (*VerificationDTO, error) {
	row, err := s.repo.FindByCredentialID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify certificate")
	}
	return &VerificationDTO{
		CredentialID: row.CredentialID,
		HolderName:   row.HolderName,
		CourseTitle:  row.CourseTitle,
		CourseSlug:   row.CourseSlug,
		IssuedAt:     row.IssuedAt,
	}, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]CertificateDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list certificates")
	}
	out := make([]CertificateDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, CertificateDTO{
			ID:           row.ID,
			CredentialID: row.CredentialID,
			CourseID:     row.CourseID,
			CourseTitle:  row.CourseTitle,
			CourseSlug:   row.CourseSlug,
			IssuedAt:     row.IssuedAt,
		})
	}
	return out, nil
}
