package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// OverdueAttemptsKey returns the Redis set holding attempt ids already flagged
// as overdue for an exam.
func (r *CacheKeyStruct) OverdueAttemptsKey(examID string) string {
	return fmt.Sprintf("exam:%s:overdue_attempts", examID)
}

var CacheKey = NewCacheKeyStruct()
