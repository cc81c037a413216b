package courses

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	"github.com/learnhub-app/learnhub-backend/pkg/pagination"
)

// Repository handles course persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to course operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new course row.
func (r *Repository) Create(ctx context.Context, course *models.Course) error {
	if course == nil {
		return fmt.Errorf("course is required")
	}
	return r.db.WithContext(ctx).Create(course).Error
}

// FindByID loads a course by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// FindBySlug loads a course by its unique slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// Update saves the provided course.
func (r *Repository) Update(ctx context.Context, course *models.Course) error {
	if course == nil {
		return fmt.Errorf("course is required")
	}
	return r.db.WithContext(ctx).Save(course).Error
}

// Delete removes the course row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Course{}, "id = ?", id).Error
}

// FindByIDWithTx loads a course using the provided transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Course, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var course models.Course
	if err := tx.First(&course, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// UpdateWithTx persists the course using the provided transaction.
func (r *Repository) UpdateWithTx(tx *gorm.DB, course *models.Course) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if course == nil {
		return fmt.Errorf("course is required")
	}
	return tx.Save(course).Error
}

// IncrementStudentsWithTx bumps the student counter inside the caller's transaction.
func (r *Repository) IncrementStudentsWithTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Course{}).
		Where("id = ?", id).
		Update("total_students", gorm.Expr("total_students + 1")).Error
}

// ListByInstructor returns the instructor's courses, newest first.
func (r *Repository) ListByInstructor(ctx context.Context, instructorID uuid.UUID) ([]models.Course, error) {
	var rows []models.Course
	err := r.db.WithContext(ctx).
		Where("instructor_id = ?", instructorID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListPublished returns a page of published courses using cursor pagination.
func (r *Repository) ListPublished(ctx context.Context, filter ListFilter) ([]models.Course, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.CourseStatusPublished)

	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Search != "" {
		q = q.Where("LOWER(title) LIKE LOWER(?)", "%"+filter.Search+"%")
	}

	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Course
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&rows).Error
	return rows, err
}

// CountEnrollments returns the authoritative enrollment count for the course.
func (r *Repository) CountEnrollments(ctx context.Context, courseID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

// ListIDs returns every course id, oldest first.
func (r *Repository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Course{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// Counters are the derived totals stored on a course row.
type Counters struct {
	Chapters int
	Lessons  int
	Students int
	Duration int
}

// ComputeCountersWithTx recomputes the course counters from the base
// tables inside the caller's transaction.
func (r *Repository) ComputeCountersWithTx(tx *gorm.DB, courseID uuid.UUID) (*Counters, error) {
	counts, err := r.countPublishableTx(tx, courseID)
	if err != nil {
		return nil, err
	}
	var students int64
	if err := tx.Model(&models.Enrollment{}).
		Where("course_id = ?", courseID).
		Count(&students).Error; err != nil {
		return nil, err
	}
	return &Counters{
		Chapters: int(counts.PublishedChapters),
		Lessons:  int(counts.PublishedLessons),
		Students: int(students),
		Duration: int(counts.PublishedDuration),
	}, nil
}

// UpdateCountersWithTx overwrites the stored counters for the course.
func (r *Repository) UpdateCountersWithTx(tx *gorm.DB, courseID uuid.UUID, counters Counters) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Course{}).
		Where("id = ?", courseID).
		Updates(map[string]any{
			"total_chapters":         counters.Chapters,
			"total_lessons":          counters.Lessons,
			"total_students":         counters.Students,
			"total_duration_seconds": counters.Duration,
		}).Error
}

// publishableCounts holds the snapshot numbers computed at publish time.
type publishableCounts struct {
	PublishedChapters     int64
	PublishedLessons      int64
	ChaptersWithPublished int64
	PublishedDuration     int64
}

// countPublishableTx computes published chapter/lesson counts inside a transaction.
func (r *Repository) countPublishableTx(tx *gorm.DB, courseID uuid.UUID) (*publishableCounts, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}

	var out publishableCounts

	if err := tx.Model(&models.Chapter{}).
		Where("course_id = ? AND is_published = ?", courseID, true).
		Count(&out.PublishedChapters).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&models.Lesson{}).
		Joins("JOIN chapters ON chapters.id = lessons.chapter_id").
		Where("chapters.course_id = ? AND chapters.is_published = ? AND lessons.is_published = ?", courseID, true, true).
		Count(&out.PublishedLessons).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&models.Chapter{}).
		Where("course_id = ? AND is_published = ?", courseID, true).
		Where("EXISTS (SELECT 1 FROM lessons WHERE lessons.chapter_id = chapters.id AND lessons.is_published = ?)", true).
		Count(&out.ChaptersWithPublished).Error; err != nil {
		return nil, err
	}

	var duration *int64
	if err := tx.Model(&models.Lesson{}).
		Select("SUM(lessons.duration_seconds)").
		Joins("JOIN chapters ON chapters.id = lessons.chapter_id").
		Where("chapters.course_id = ? AND chapters.is_published = ? AND lessons.is_published = ?", courseID, true, true).
		Scan(&duration).Error; err != nil {
		return nil, err
	}
	if duration != nil {
		out.PublishedDuration = *duration
	}

	return &out, nil
}
