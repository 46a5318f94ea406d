package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
)

// FiberStorage stores JSON-encoded values in any fiber.Storage backend, such
// as the redis or memory storage shared with the session middleware.
type FiberStorage struct {
	backend fiber.Storage
}

func NewFiberStorage(backend fiber.Storage) *FiberStorage {
	return &FiberStorage{backend: backend}
}

func (s *FiberStorage) Backend() fiber.Storage {
	return s.backend
}

func (s *FiberStorage) Get(ctx context.Context, key string, val any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.backend.Get(key)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(data, val)
}

// Set stores val for expiresIn. Zero or negative durations never expire.
func (s *FiberStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if expiresIn < 0 {
		expiresIn = 0
	}
	return s.backend.Set(key, data, expiresIn)
}

func (s *FiberStorage) Save(ctx context.Context, key string, val any) error {
	return s.Set(ctx, key, val, 0)
}

func (s *FiberStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backend.Delete(key)
}
