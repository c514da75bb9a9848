package laoshi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChatSend_DecodesTeaching(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode chat body: %v", err)
		}
		if body["message"] != "how do I order beer" {
			t.Errorf("message = %v", body["message"])
		}
		if body["level"] != "beginner" {
			t.Errorf("level = %v, want beginner", body["level"])
		}
		writeJSON(t, w, http.StatusOK, ChatResponse{
			Reply: "你可以说：请给我一杯啤酒",
			Teaching: &Teaching{
				Translation: "You can say: please give me a glass of beer",
				Pinyin:      "qǐng gěi wǒ yī bēi píjiǔ",
				KeyPoints: []KeyPoint{
					{Phrase: "一杯", Pinyin: "yī bēi", Meaning: "one glass of"},
				},
				FollowUp: "试着点两杯",
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	resp, err := client.Chat.Send(context.Background(), "how do I order beer", LevelBeginner)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Teaching == nil || len(resp.Teaching.KeyPoints) != 1 {
		t.Fatalf("Teaching = %+v, want one key point", resp.Teaching)
	}
	if resp.Teaching.KeyPoints[0].Phrase != "一杯" {
		t.Errorf("key point phrase = %q", resp.Teaching.KeyPoints[0].Phrase)
	}
}

func TestChatSendWithHistory_SkipsTypingPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Speaker  string              `json:"speaker"`
			Messages []map[string]string `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Speaker != "partner" {
			t.Errorf("speaker = %q, want partner", body.Speaker)
		}
		if len(body.Messages) != 2 {
			t.Errorf("messages = %v, placeholder should be dropped", body.Messages)
		}
		writeJSON(t, w, http.StatusOK, ChatResponse{Reply: "好的"})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	messages := []ChatMessage{
		{ID: "1", Role: RoleUser, Text: "你好"},
		{ID: "2", Role: RoleAssistant, Text: "你好！"},
		{ID: "3", Role: RoleAssistant, IsTyping: true},
	}
	if _, err := client.Chat.SendWithHistory(context.Background(), SpeakerPartner, messages, ""); err != nil {
		t.Fatalf("SendWithHistory() error = %v", err)
	}
}

func TestConversation_AppendAndRemove(t *testing.T) {
	c := NewConversation()
	user := c.AddUserMessage("你好")
	placeholder := c.AddTypingPlaceholder()

	msgs := c.Messages()
	if len(msgs) != 2 || !msgs[1].IsTyping {
		t.Fatalf("Messages() = %+v, want user message plus placeholder", msgs)
	}

	c.Remove(placeholder.ID)
	msgs = c.Messages()
	if len(msgs) != 1 || msgs[0].ID != user.ID {
		t.Fatalf("Messages() after Remove = %+v", msgs)
	}
}

func TestStreamText_RevealsByRunes(t *testing.T) {
	c := NewConversation()
	placeholder := c.AddTypingPlaceholder()

	full := "请给我两杯啤酒"
	teaching := &Teaching{Pinyin: "qǐng gěi wǒ liǎng bēi píjiǔ"}
	done := c.StreamText(placeholder.ID, full, teaching, time.Millisecond)

	// Every intermediate snapshot must be a whole-rune prefix of the reply.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
			msgs := c.Messages()
			got := msgs[len(msgs)-1]
			if got.Text != full {
				t.Errorf("final text = %q, want %q", got.Text, full)
			}
			if got.IsTyping {
				t.Error("typing flag should clear when the reveal completes")
			}
			if got.Teaching != teaching {
				t.Error("teaching annotation should be installed on completion")
			}
			return
		case <-deadline:
			t.Fatal("reveal did not complete")
		default:
			msgs := c.Messages()
			partial := msgs[len(msgs)-1].Text
			if !strings.HasPrefix(full, partial) {
				t.Fatalf("partial %q is not a prefix of %q (split a rune?)", partial, full)
			}
			time.Sleep(time.Millisecond / 2)
		}
	}
}

func TestStreamText_ConcurrentCallForSameIDIgnored(t *testing.T) {
	c := NewConversation()
	placeholder := c.AddTypingPlaceholder()

	full := "这是一条比较长的回复"
	first := c.StreamText(placeholder.ID, full, nil, 20*time.Millisecond)
	second := c.StreamText(placeholder.ID, "другой", nil, time.Millisecond)

	select {
	case <-second:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("second StreamText for a streaming id should return a closed channel")
	}

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("first reveal did not complete")
	}
	msgs := c.Messages()
	if got := msgs[len(msgs)-1].Text; got != full {
		t.Errorf("final text = %q, want the first reveal's %q", got, full)
	}
}

func TestStreamText_RemovedMessageStopsReveal(t *testing.T) {
	c := NewConversation()
	placeholder := c.AddTypingPlaceholder()

	done := c.StreamText(placeholder.ID, "你好你好你好", nil, 5*time.Millisecond)
	c.Remove(placeholder.ID)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reveal should stop once its message is removed")
	}
	if len(c.Messages()) != 0 {
		t.Errorf("Messages() = %+v, want empty", c.Messages())
	}
}

func TestChatSend_PropagatesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusInternalServerError, map[string]string{"detail": "model overloaded"})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Chat.Send(context.Background(), "你好", "")

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Type != ErrServer {
		t.Fatalf("Send() error = %v, want server_error", err)
	}
	if apiErr.Message != "model overloaded" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}
