package pipeline

import (
	"sync"
	"time"

	"github.com/hejijunhao/mailsort/internal/model"
)

// emailBuffer accumulates emails until the batch is full or the flush
// window elapses.
type emailBuffer struct {
	window  time.Duration // 0 disables the timer
	maxSize int

	mu      sync.Mutex
	pending []model.Email
	timer   *time.Timer
}

func newEmailBuffer(window time.Duration, maxSize int) *emailBuffer {
	return &emailBuffer{
		window:  window,
		maxSize: maxSize,
	}
}

// add appends an email to the buffer. If this is the first email, starts the
// flush timer. Returns true if the buffer is full and needs flushing.
func (b *emailBuffer) add(email model.Email) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, email)
	if len(b.pending) == 1 && b.window > 0 {
		b.timer = time.NewTimer(b.window)
	}
	return len(b.pending) >= b.maxSize
}

// flushCh returns the timer's channel, or nil if no timer is active.
func (b *emailBuffer) flushCh() <-chan time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

// take empties the buffer and stops the timer.
func (b *emailBuffer) take() []model.Email {
	b.mu.Lock()
	defer b.mu.Unlock()
	emails := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return emails
}
