package server

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sonaguard/sonaguard/detect"
	"github.com/sonaguard/sonaguard/logging"
)

// User is a registered account with its own API key
type User struct {
	ID            uint   `gorm:"primarykey"`
	Email         string `gorm:"uniqueIndex;size:255"`
	PasswordHash  string `gorm:"size:255"`
	APIKey        string `gorm:"uniqueIndex;size:64"`
	TotalRequests int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DetectionLog records one served verdict. Persistence is best effort:
// a failed insert never fails the request that produced it.
type DetectionLog struct {
	ID            uint   `gorm:"primarykey"`
	RequestID     string `gorm:"index;size:36"`
	UserEmail     string `gorm:"index;size:255"`
	Prediction    string `gorm:"size:32"`
	Confidence    float64
	AudioDuration float64
	Explanation   string `gorm:"size:512"` // JSON-encoded levels
	CreatedAt     time.Time
}

// Store wraps the sqlite persistence layer
type Store struct {
	db *gorm.DB
}

// NewStore opens the sqlite database and migrates the schema
func NewStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &DetectionLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateUser inserts a new account
func (s *Store) CreateUser(email, passwordHash, apiKey string) (*User, error) {
	user := &User{
		Email:        email,
		PasswordHash: passwordHash,
		APIKey:       apiKey,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByEmail returns the user or nil when no account exists
func (s *Store) GetUserByEmail(email string) (*User, error) {
	var user User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByAPIKey returns the user owning the key or nil
func (s *Store) GetUserByAPIKey(apiKey string) (*User, error) {
	var user User
	err := s.db.Where("api_key = ?", apiKey).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// IncrementRequests bumps the per-user request counter
func (s *Store) IncrementRequests(email string) error {
	return s.db.Model(&User{}).
		Where("email = ?", email).
		UpdateColumn("total_requests", gorm.Expr("total_requests + 1")).Error
}

// LogDetection persists one verdict. Failures are logged, never returned.
func (s *Store) LogDetection(requestID, userEmail string, result *detect.DetectionResult) {
	explanation, err := json.Marshal(result.Explanation)
	if err != nil {
		explanation = []byte("{}")
	}

	record := &DetectionLog{
		RequestID:     requestID,
		UserEmail:     userEmail,
		Prediction:    result.Prediction,
		Confidence:    result.Confidence,
		AudioDuration: result.AudioDuration,
		Explanation:   string(explanation),
	}

	if err := s.db.Create(record).Error; err != nil {
		logging.Warn("Failed to persist detection log", logging.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

// UserStats summarizes one user's detection history
type UserStats struct {
	TotalDetections int64 `json:"total_detections"`
	AIDetections    int64 `json:"ai_detections"`
	HumanDetections int64 `json:"human_detections"`
	TotalRequests   int64 `json:"total_requests"`
}

// GetUserStats aggregates the per-user counters
func (s *Store) GetUserStats(email string) (*UserStats, error) {
	stats := &UserStats{}

	base := s.db.Model(&DetectionLog{}).Where("user_email = ?", email)
	if err := base.Count(&stats.TotalDetections).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&DetectionLog{}).
		Where("user_email = ? AND prediction = ?", email, "AI_GENERATED").
		Count(&stats.AIDetections).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&DetectionLog{}).
		Where("user_email = ? AND prediction = ?", email, "HUMAN").
		Count(&stats.HumanDetections).Error; err != nil {
		return nil, err
	}

	user, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		stats.TotalRequests = user.TotalRequests
	}

	return stats, nil
}

// GetUserHistory returns a user's most recent detections, newest first
func (s *Store) GetUserHistory(email string, limit int) ([]DetectionLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var logs []DetectionLog
	err := s.db.Where("user_email = ?", email).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// Close releases the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
