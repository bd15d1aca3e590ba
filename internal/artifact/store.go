// Package artifact stores the pipeline's hand-off blobs: cleaned and
// partitioned data, encoded matrices, fitted preprocessing and the model
// bundle. Every write is all-or-nothing so a failed stage never leaves a
// partial artifact behind.
package artifact

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/goccy/go-json"
)

// Store is a flat key to blob store. Keys are slash-separated relative
// paths.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	// PutAll writes every blob or none of them where the backend supports
	// it. The file backend writes keys in sorted order, each atomically.
	PutAll(ctx context.Context, blobs map[string][]byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the configured backend.
func Open(cfg config.ArtifactsConfig) (Store, error) {
	switch cfg.Backend {
	case "fs", "":
		return NewFileStore(cfg.Dir)
	case "badger":
		return OpenBadger(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

// CleanKey validates and normalizes a key.
func CleanKey(key string) (string, error) {
	k := path.Clean(strings.TrimSpace(key))
	if key == "" || k == "." || strings.HasPrefix(k, "/") || k == ".." || strings.HasPrefix(k, "../") {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid artifact key %q", key)
	}
	return k, nil
}

func notFound(key string) error {
	return apperrors.Newf(apperrors.ErrArtifactMissing, http.StatusNotFound, "artifact %q not found", key)
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding artifact %q: %w", key, err)
	}
	return &v, nil
}

// MarshalJSON encodes v for storage.
func MarshalJSON(key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding artifact %q: %w", key, err)
	}
	return data, nil
}

// PutJSON encodes v and writes it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := MarshalJSON(key, v)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, data)
}
