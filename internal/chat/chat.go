// Package chat serializes AI requests within one logical conversation. The
// pipeline itself is pure and synchronous; the only asynchronous boundary is
// the external model call, and this package keeps answers appearing in the
// order questions were asked.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// AskFunc performs one model call for a question. The conversation does not
// hold its lock while this runs.
type AskFunc func(ctx context.Context, question string) (string, error)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrSuperseded is returned when a newer request was started while this
	// one was in flight. The newer request owns the conversation tail.
	ErrSuperseded = errors.New("chat: request superseded by a newer one")
	// ErrNoExchange is returned by Regenerate when there is no completed
	// question/answer pair to redo.
	ErrNoExchange = errors.New("chat: no exchange to regenerate")
)

// Conversation owns the message history for one logical conversation and
// admits at most one in-flight model request. Starting a new request cancels
// the in-flight one; the cancelled request's response is discarded.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	gen      uint64
	cancel   context.CancelFunc
}

// NewConversation creates a conversation seeded with prior history, oldest
// first. The history is copied.
func NewConversation(history []Message) *Conversation {
	c := &Conversation{}
	c.messages = append(c.messages, history...)
	return c
}

// Ask records the user question, runs the model call, and appends the answer.
// If another Ask or Regenerate starts while the call is in flight, the call's
// context is cancelled and Ask returns ErrSuperseded; the question stays in
// the transcript but no answer is appended for it.
func (c *Conversation) Ask(ctx context.Context, question string, ask AskFunc) (string, error) {
	callCtx, myGen := c.begin(ctx)
	c.mu.Lock()
	c.messages = append(c.messages, Message{Role: RoleUser, Content: question, CreatedAt: time.Now()})
	c.mu.Unlock()

	answer, err := ask(callCtx, question)
	return c.finish(myGen, answer, err, false)
}

// Regenerate redoes the last exchange: it re-asks the most recent user
// question and replaces the most recent assistant message with the new
// answer, instead of appending.
func (c *Conversation) Regenerate(ctx context.Context, ask AskFunc) (string, error) {
	c.mu.Lock()
	question, ok := c.lastUserQuestionLocked()
	c.mu.Unlock()
	if !ok {
		return "", ErrNoExchange
	}

	callCtx, myGen := c.begin(ctx)
	answer, err := ask(callCtx, question)
	return c.finish(myGen, answer, err, true)
}

// Messages returns a copy of the transcript, oldest first.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// begin claims the next generation, cancelling any in-flight request.
func (c *Conversation) begin(ctx context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.gen++
	return callCtx, c.gen
}

// finish commits the outcome of a model call if it is still the current
// generation.
func (c *Conversation) finish(myGen uint64, answer string, err error, replace bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != myGen {
		return "", ErrSuperseded
	}
	c.cancel()
	c.cancel = nil
	if err != nil {
		return "", err
	}

	msg := Message{Role: RoleAssistant, Content: answer, CreatedAt: time.Now()}
	if replace && len(c.messages) > 0 && c.messages[len(c.messages)-1].Role == RoleAssistant {
		c.messages[len(c.messages)-1] = msg
	} else {
		c.messages = append(c.messages, msg)
	}
	return answer, nil
}

func (c *Conversation) lastUserQuestionLocked() (string, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleUser {
			return c.messages[i].Content, true
		}
	}
	return "", false
}
