// Package clocktest 提供可手动推进的时钟，供测试驱动防抖与超时。
package clocktest

import (
	"sort"
	"sync"
	"time"

	"swapdesk/internal/clock"
)

var _ clock.Clock = (*Manual)(nil)

// Manual 只在调用 Advance 时推进，到期回调在调用方 goroutine 上同步执行。
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers []*manualTimer
}

type manualTimer struct {
	clock    *Manual
	id       int
	deadline time.Time
	fn       func()
	stopped  bool
}

// NewManual 创建从 start 开始的手动时钟。
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now 返回当前时间。
func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc 登记一个在 d 之后触发的回调。
func (c *Manual) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &manualTimer{clock: c, id: c.nextID, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending 返回尚未触发且未取消的定时器数量。
func (c *Manual) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Advance 推进时间并按到期顺序执行回调。
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			return c.timers[i].deadline.Before(c.timers[j].deadline)
		})
		var due *manualTimer
		for _, t := range c.timers {
			if !t.stopped && !t.deadline.After(target) {
				due = t
				break
			}
		}
		if due == nil {
			c.now = target
			c.compact()
			c.mu.Unlock()
			return
		}
		due.stopped = true
		c.now = due.deadline
		c.mu.Unlock()

		due.fn()
	}
}

func (c *Manual) compact() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	c.timers = live
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}
