// Package testutil provides shared test doubles and fixtures for service and server tests.
package testutil

import (
	"testing"

	"github.com/aslbekqoziboyev/aiverselabs/internal/database"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SQLiteDB returns a migrated in-memory database private to the test.
func SQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateProfile inserts a profile with a placeholder password hash.
func CreateProfile(t *testing.T, db *gorm.DB, username string, admin bool) *models.Profile {
	t.Helper()
	p := &models.Profile{
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
		Username: username,
		IsAdmin:  admin,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create profile %s: %v", username, err)
	}
	return p
}
