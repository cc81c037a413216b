package enums

import "fmt"

// LessonType determines which content fields a lesson requires.
type LessonType string

const (
	LessonTypeVideo      LessonType = "VIDEO"
	LessonTypeText       LessonType = "TEXT"
	LessonTypeQuiz       LessonType = "QUIZ"
	LessonTypeAssignment LessonType = "ASSIGNMENT"
)

var validLessonTypes = []LessonType{
	LessonTypeVideo,
	LessonTypeText,
	LessonTypeQuiz,
	LessonTypeAssignment,
}

// String implements fmt.Stringer.
func (t LessonType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t LessonType) IsValid() bool {
	for _, candidate := range validLessonTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLessonType converts raw input into a LessonType.
func ParseLessonType(value string) (LessonType, error) {
	for _, candidate := range validLessonTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lesson type %q", value)
}
