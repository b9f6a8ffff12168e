package testfixtures

import (
	"sync"
	"time"
)

// ReferenceTime 测试统一使用的起点：2025-03-10 (周一) 08:00 UTC
func ReferenceTime() time.Time {
	return time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
}

// Clock 可控时钟，满足 clock.Clock
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance 拨快时钟并返回新的时间
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}
