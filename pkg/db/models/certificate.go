package models

import (
	"time"

	"github.com/google/uuid"
)

// Certificate records course completion. CredentialID is the public
// verification handle; the user/course unique index guarantees at most
// one certificate per completion.
type Certificate struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_certificates_user_course"`
	CourseID     uuid.UUID `gorm:"column:course_id;type:uuid;not null;uniqueIndex:idx_certificates_user_course"`
	CredentialID string    `gorm:"column:credential_id;not null;uniqueIndex"`
	IssuedAt     time.Time `gorm:"column:issued_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
