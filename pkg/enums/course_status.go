package enums

import "fmt"

// CourseStatus tracks a course through its publication lifecycle.
type CourseStatus string

const (
	CourseStatusDraft       CourseStatus = "DRAFT"
	CourseStatusUnderReview CourseStatus = "UNDER_REVIEW"
	CourseStatusPublished   CourseStatus = "PUBLISHED"
	CourseStatusArchived    CourseStatus = "ARCHIVED"
)

var validCourseStatuses = []CourseStatus{
	CourseStatusDraft,
	CourseStatusUnderReview,
	CourseStatusPublished,
	CourseStatusArchived,
}

// String implements fmt.Stringer.
func (s CourseStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s CourseStatus) IsValid() bool {
	for _, candidate := range validCourseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCourseStatus converts raw input into a CourseStatus.
func ParseCourseStatus(value string) (CourseStatus, error) {
	for _, candidate := range validCourseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid course status %q", value)
}
