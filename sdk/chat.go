package laoshi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const chatTimeout = 30 * time.Second

// ChatService exchanges text turns with the tutor.
type ChatService struct {
	client *Client
}

// Send posts one user message and returns the tutor's reply with its
// teaching annotation.
func (s *ChatService) Send(ctx context.Context, message string, level Level) (*ChatResponse, error) {
	body := map[string]any{"message": message}
	if level != "" {
		body["level"] = level
	}
	var resp ChatResponse
	if err := s.client.authedJSON(ctx, http.MethodPost, "/chat", body, &resp, chatTimeout, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendWithHistory posts the running conversation under a speaker persona.
func (s *ChatService) SendWithHistory(ctx context.Context, speaker Speaker, messages []ChatMessage, level Level) (*ChatResponse, error) {
	wire := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		if m.IsTyping {
			continue
		}
		wire = append(wire, map[string]string{"role": string(m.Role), "text": m.Text})
	}
	body := map[string]any{"speaker": speaker, "messages": wire}
	if level != "" {
		body["level"] = level
	}
	var resp ChatResponse
	if err := s.client.authedJSON(ctx, http.MethodPost, "/chat", body, &resp, chatTimeout, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conversation holds the ordered message sequence for one session. The
// sequence is append-only except for in-place text mutation while an
// assistant reply streams in, and removal of the typing placeholder.
type Conversation struct {
	mu        sync.Mutex
	messages  []ChatMessage
	streaming map[string]bool
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{streaming: make(map[string]bool)}
}

// Messages returns a snapshot of the sequence.
func (c *Conversation) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// AddUserMessage appends a user message and returns it.
func (c *Conversation) AddUserMessage(text string) ChatMessage {
	return c.append(ChatMessage{ID: uuid.NewString(), Role: RoleUser, Text: text})
}

// AddAssistantMessage appends a completed assistant message and returns it.
func (c *Conversation) AddAssistantMessage(text string, teaching *Teaching) ChatMessage {
	return c.append(ChatMessage{ID: uuid.NewString(), Role: RoleAssistant, Text: text, Teaching: teaching})
}

// AddTypingPlaceholder appends the transient assistant placeholder shown
// while a reply is pending.
func (c *Conversation) AddTypingPlaceholder() ChatMessage {
	return c.append(ChatMessage{ID: uuid.NewString(), Role: RoleAssistant, IsTyping: true})
}

// Remove deletes the message with the given id, if present. Used to drop the
// typing placeholder when a turn fails.
func (c *Conversation) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}

func (c *Conversation) append(m ChatMessage) ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
	return m
}

func (c *Conversation) find(id string) (int, bool) {
	for i, m := range c.messages {
		if m.ID == id {
			return i, true
		}
	}
	return 0, false
}

// StreamText reveals full into the message with the given id one rune per
// tick, simulating a streaming reply. The timer self-cancels once the full
// text is shown, clearing the typing flag and installing the teaching
// annotation. A second call for the same id while one is running is ignored.
// The returned channel closes when the reveal completes.
func (c *Conversation) StreamText(id, full string, teaching *Teaching, tick time.Duration) <-chan struct{} {
	done := make(chan struct{})

	c.mu.Lock()
	if c.streaming[id] {
		c.mu.Unlock()
		close(done)
		return done
	}
	if _, ok := c.find(id); !ok {
		c.mu.Unlock()
		close(done)
		return done
	}
	c.streaming[id] = true
	c.mu.Unlock()

	// Reveal by runes so multi-byte text (which is most of what a Chinese
	// tutor says) is never split mid-character.
	runes := []rune(full)

	go func() {
		defer close(done)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		shown := 0
		for range ticker.C {
			shown++
			finished := shown >= len(runes)

			c.mu.Lock()
			i, ok := c.find(id)
			if !ok {
				delete(c.streaming, id)
				c.mu.Unlock()
				return
			}
			if finished {
				c.messages[i].Text = full
				c.messages[i].IsTyping = false
				c.messages[i].Teaching = teaching
				delete(c.streaming, id)
				c.mu.Unlock()
				return
			}
			c.messages[i].Text = string(runes[:shown])
			c.mu.Unlock()
		}
	}()
	return done
}
