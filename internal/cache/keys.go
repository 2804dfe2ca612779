package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// RateLimitKey buckets dashboard calls per user per minute window.
func RateLimitKey(userID uuid.UUID, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", userID, window)
}
