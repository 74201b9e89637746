package xmscope

import (
	"fmt"
	"log"
	"sync"
)

type numeric interface {
	int | float64
}

func clamp[T numeric](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// rateLogger prints only every n-th message of the same key.
// It's used on the per-frame paths where a failure can repeat
// dozens of times per second.
type rateLogger struct {
	mu       sync.Mutex
	logger   *log.Logger
	every    int
	counters map[string]int
}

func newRateLogger(logger *log.Logger, every int) *rateLogger {
	return &rateLogger{
		logger:   logger,
		every:    every,
		counters: make(map[string]int),
	}
}

func (l *rateLogger) Printf(key string, format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.mu.Lock()
	count := l.counters[key]
	l.counters[key] = count + 1
	l.mu.Unlock()
	if count%l.every != 0 {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if count == 0 {
		l.logger.Print(msg)
		return
	}
	l.logger.Printf("%s (repeated %d times)", msg, count+1)
}
