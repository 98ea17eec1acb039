package services

import "time"

// MockImageService is the real image service over a MemoryStore
type MockImageService struct {
	*StoredImageService
	Store *MemoryStore
}

// NewMockImageService creates an image service with empty in-memory storage
func NewMockImageService() *MockImageService {
	store := NewMemoryStore()
	return &MockImageService{
		StoredImageService: NewImageService(store, "", time.Hour),
		Store:              store,
	}
}

// ImageExists reports whether the key is still stored
func (m *MockImageService) ImageExists(imageKey string) bool {
	return m.Store.Has(imageKey)
}
