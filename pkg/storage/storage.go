// Package storage writes avatar objects to local disk or Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Backend stores an object under a slash separated key and returns its location.
// Saving an existing key overwrites it.
type Backend interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

var ErrInvalidKey = errors.New("invalid storage key")

// CleanKey rejects absolute keys and any ".." segment, returning the cleaned key.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
