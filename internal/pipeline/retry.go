package pipeline

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docingest/internal/storage"
)

// persistAttempts bounds the full metadata writes tried before the minimal
// direct write.
const persistAttempts = 3

// retryable reports whether a metadata write error may clear on its own.
func retryable(err error) bool {
	return !errors.Is(err, fs.ErrPermission) && !errors.Is(err, storage.ErrPathTraversal)
}

// backoff returns a duration for attempt n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 25 * time.Millisecond
	if base > time.Second {
		base = time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
