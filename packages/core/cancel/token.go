// Package cancel provides a one-way, multi-reader cancellation signal.
package cancel

import (
	"context"
	"sync"
)

// Token is signaled at most once and stays signaled forever.
// The zero value is not usable; create tokens with NewToken.
type Token struct {
	once sync.Once
	done chan struct{}
}

// NewToken returns a fresh, unsignaled token
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel signals the token. Calling it more than once is a no-op.
func (t *Token) Cancel() {
	t.once.Do(func() {
		close(t.done)
	})
}

// Done returns a channel that is closed once the token is signaled
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Cancelled reports whether the token has been signaled
func (t *Token) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Bind signals the token when ctx is done. The returned stop function
// releases the binding; it reports false if the token was already signaled
// through ctx.
func (t *Token) Bind(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, t.Cancel)
}
