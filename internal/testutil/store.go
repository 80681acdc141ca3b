package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"
)

// MemStore is an in-memory storage.Store.
type MemStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	RemoveErr error
	PutErr    error
}

func NewMemStore() *MemStore {
	return &MemStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *MemStore) Put(_ context.Context, bucket, objectPath string, body io.Reader, contentType string) (storage.Object, error) {
	if s.PutErr != nil {
		return storage.Object{}, s.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.Object{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+objectPath] = data
	s.types[bucket+"/"+objectPath] = contentType
	return storage.Object{Bucket: bucket, Path: objectPath, URL: s.PublicURL(bucket, objectPath), Size: int64(len(data))}, nil
}

func (s *MemStore) Remove(_ context.Context, bucket, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	key := bucket + "/" + objectPath
	if _, ok := s.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemStore) PublicURL(bucket, objectPath string) string {
	return "https://files.example.com/" + bucket + "/" + objectPath
}

func (s *MemStore) Driver() string { return "memory" }

// Has reports whether an object exists.
func (s *MemStore) Has(bucket, objectPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[bucket+"/"+objectPath]
	return ok
}

// ContentType returns the content type an object was stored with.
func (s *MemStore) ContentType(bucket, objectPath string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[bucket+"/"+objectPath]
}

// Len returns the number of stored objects.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
