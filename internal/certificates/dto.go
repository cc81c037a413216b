package certificates

import (
	"time"

	"github.com/google/uuid"
)

// VerificationDTO is the public verification payload for a credential.
type VerificationDTO struct {
	CredentialID string    `json:"credential_id"`
	HolderName   string    `json:"holder_name"`
	CourseTitle  string    `json:"course_title"`
	CourseSlug   string    `json:"course_slug"`
	IssuedAt     time.Time `json:"issued_at"`
}

// CertificateDTO is the owner-facing certificate shape.
type CertificateDTO struct {
	ID           uuid.UUID `json:"id"`
	CredentialID string    `json:"credential_id"`
	CourseID     uuid.UUID `json:"course_id"`
	CourseTitle  string    `json:"course_title"`
	CourseSlug   string    `json:"course_slug"`
	IssuedAt     time.Time `json:"issued_at"`
}
