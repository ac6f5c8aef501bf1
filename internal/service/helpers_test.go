package service

import (
	"testing"
	"time"

	"exam_practice_backend/internal/config"
	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour
	cfg.Exam.PassPercentage = 70
	cfg.Exam.LowTimeWarningSeconds = 60
	cfg.Auth.MagicLinkTTLMinutes = 15
	cfg.Auth.MagicLinkBaseURL = "http://localhost:3000/auth/callback"
	cfg.Auth.BootstrapAdmins = []string{"boss@example.com"}
	cfg.Payment.PendingTTLHours = 24
	cfg.Payment.Currency = "IDR"
	return cfg
}

// fixedClock 可手动推进的时钟
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time          { return c.t }
func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

// sampleTest 两道题：单选（正确项 B）与多选（正确项 A、C）
type sampleTest struct {
	Test      *model.Test
	Single    *model.Question
	Multiple  *model.Question
	CorrectB  string
	WrongA    string
	MultiA    string
	MultiC    string
	MultiB    string
	Questions []string
}

func createSampleTest(t *testing.T, catalog *repository.CatalogRepository, price string) *sampleTest {
	t.Helper()
	single := &model.Question{Text: "Pick B", Type: exam.SingleChoice, Answers: []model.Answer{
		{Text: "A", Position: 0},
		{Text: "B", IsCorrect: true, Position: 1},
	}}
	multiple := &model.Question{Text: "Pick A and C", Type: exam.MultipleChoice, Answers: []model.Answer{
		{Text: "A", IsCorrect: true, Position: 0},
		{Text: "B", Position: 1},
		{Text: "C", IsCorrect: true, Position: 2},
	}}
	require.NoError(t, catalog.CreateQuestion(single))
	require.NoError(t, catalog.CreateQuestion(multiple))

	test := &model.Test{Title: "Sample", TimeLimit: 600, IsActive: true, Price: decimal.RequireFromString(price)}
	ids := []string{single.ID, multiple.ID}
	require.NoError(t, catalog.CreateTest(test, ids))

	return &sampleTest{
		Test:      test,
		Single:    single,
		Multiple:  multiple,
		WrongA:    single.Answers[0].ID,
		CorrectB:  single.Answers[1].ID,
		MultiA:    multiple.Answers[0].ID,
		MultiB:    multiple.Answers[1].ID,
		MultiC:    multiple.Answers[2].ID,
		Questions: ids,
	}
}

func createUser(t *testing.T, users *repository.UserRepository, email string, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{Email: email}
	require.NoError(t, users.Create(u, &model.Profile{Role: role}))
	return u
}
