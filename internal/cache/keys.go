package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// SweepLockKey guards the periodic reconciliation sweep across instances.
func SweepLockKey() string {
	return "lock:sweep"
}

// JobEventsChannel is the pub/sub channel for terminal events of one source feature.
func JobEventsChannel(source string) string {
	return fmt.Sprintf("jobs:events:%s", source)
}
