// Package services holds the application logic behind the HTTP handlers.
// Every method returns *apperr.Error values the HTTP layer can map.
package services

import (
	"errors"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/storage"
)

const (
	msgUserNotFound    = "User not found"
	msgStoryNotFound   = "Story not found"
	msgChapterNotFound = "Chapter not found"
	msgInvalidRequest  = "Invalid request data"
)

// Clock returns the current time.
type Clock func() time.Time

// storeErr passes typed errors through, maps storage.ErrNotFound to a 404
// with the given message and wraps everything else as internal.
func storeErr(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(notFound)
	}
	if errors.Is(err, storage.ErrInvalidKey) {
		return apperr.Validation(msgInvalidRequest)
	}
	return apperr.Internal(err)
}
