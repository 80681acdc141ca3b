package repository

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aslbekqoziboyev/aiverselabs/internal/database"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLiteDB returns a migrated, isolated in-memory database.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func createProfile(t *testing.T, db *gorm.DB, username string) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: username + "@example.com", Password: "hash", Username: username}
	require.NoError(t, db.Create(p).Error)
	return p
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removeErr error
	removed   []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Put(_ context.Context, bucket, objectPath string, body io.Reader, _ string) (storage.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.Object{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+objectPath] = data
	return storage.Object{Bucket: bucket, Path: objectPath, URL: s.PublicURL(bucket, objectPath), Size: int64(len(data))}, nil
}

func (s *memStore) Remove(_ context.Context, bucket, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	key := bucket + "/" + objectPath
	if _, ok := s.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.objects, key)
	s.removed = append(s.removed, key)
	return nil
}

func (s *memStore) PublicURL(bucket, objectPath string) string {
	return "https://files.example.com/" + bucket + "/" + objectPath
}

func (s *memStore) Driver() string { return "memory" }

func (s *memStore) has(bucket, objectPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[bucket+"/"+objectPath]
	return ok
}
