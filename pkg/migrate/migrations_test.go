package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/learnhub-app/learnhub-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestLearningMigrationContainsUniqueGuards(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_learning_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no learning tables migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX idx_enrollments_user_course ON enrollments (user_id, course_id)",
		"CREATE UNIQUE INDEX idx_user_progress_user_lesson ON user_progress (user_id, lesson_id)",
		"CREATE UNIQUE INDEX idx_certificates_user_course ON certificates (user_id, course_id)",
		"CREATE UNIQUE INDEX ux_certificates_credential_id ON certificates (credential_id)",
		"DROP TABLE IF EXISTS enrollments",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
