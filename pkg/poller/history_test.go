package poller

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/zaxchat/zax-backend/pkg/client"
)

func userMessage(body string) *client.Message {
	return &client.Message{ID: "m-" + body, SenderType: "user", Body: body}
}

func TestHistoryCachePutAndTitle(t *testing.T) {
	cache := NewHistoryCache(10)
	cache.Put("s1", []*client.Message{
		{ID: "m0", SenderType: "bot", Body: "Hello! How can I help?"},
		userMessage("How do I register for VAT?"),
	})

	entry, ok := cache.Get("s1")
	if !ok {
		t.Fatal("entry missing")
	}
	if entry.Title != "How do I register for VAT?" {
		t.Errorf("title = %q, want the first user message", entry.Title)
	}

	cache.Put("empty", []*client.Message{{ID: "m1", SenderType: "bot", Body: "Hi"}})
	entry, _ = cache.Get("empty")
	if entry.Title != "New conversation" {
		t.Errorf("title = %q, want the default", entry.Title)
	}

	long := strings.Repeat("VAT registration and returns ", 5)
	cache.Put("long", []*client.Message{userMessage(long)})
	entry, _ = cache.Get("long")
	if n := utf8.RuneCountInString(entry.Title); n > historyTitleLimit+3 {
		t.Errorf("title %q not truncated", entry.Title)
	}
}

func TestHistoryCacheTitleMultiByte(t *testing.T) {
	cache := NewHistoryCache(10)
	long := strings.Repeat("régime fiscal à Kabwé ", 4)
	cache.Put("s1", []*client.Message{userMessage(long)})

	entry, _ := cache.Get("s1")
	if !utf8.ValidString(entry.Title) {
		t.Fatalf("title %q is not valid UTF-8", entry.Title)
	}
	want := string([]rune(strings.TrimSpace(long))[:historyTitleLimit]) + "..."
	if entry.Title != want {
		t.Errorf("title = %q, want %q", entry.Title, want)
	}
}

func TestHistoryCacheEviction(t *testing.T) {
	cache := NewHistoryCache(3)
	for i := 0; i < 3; i++ {
		cache.Put(fmt.Sprintf("s%d", i), []*client.Message{userMessage(fmt.Sprintf("question %d", i))})
	}

	// Refresh s0 so s1 becomes the oldest.
	cache.Put("s0", []*client.Message{userMessage("question 0 again")})
	cache.Put("s3", []*client.Message{userMessage("question 3")})

	if cache.Len() != 3 {
		t.Fatalf("len = %d, want 3", cache.Len())
	}
	if _, ok := cache.Get("s1"); ok {
		t.Error("oldest entry s1 not evicted")
	}
	list := cache.List()
	if list[0].SessionID != "s3" {
		t.Errorf("most recent = %s, want s3", list[0].SessionID)
	}
}

func TestHistoryCacheSaveLoad(t *testing.T) {
	cache := NewHistoryCache(10)
	cache.Put("s1", []*client.Message{userMessage("first question")})
	cache.Put("s2", []*client.Message{userMessage("second question")})

	var buf bytes.Buffer
	if err := cache.Save(&buf); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	restored := NewHistoryCache(10)
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("restored len = %d, want 2", restored.Len())
	}
	entry, ok := restored.Get("s1")
	if !ok || entry.Title != "first question" {
		t.Errorf("restored s1 = %+v", entry)
	}
	if restored.List()[0].SessionID != "s2" {
		t.Errorf("recency order lost: %s first", restored.List()[0].SessionID)
	}
}

func TestHistoryCacheLoadBeyondCap(t *testing.T) {
	big := NewHistoryCache(10)
	for i := 0; i < 6; i++ {
		big.Put(fmt.Sprintf("s%d", i), []*client.Message{userMessage(fmt.Sprintf("q%d", i))})
	}
	var buf bytes.Buffer
	if err := big.Save(&buf); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	small := NewHistoryCache(4)
	if err := small.Load(&buf); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if small.Len() != 4 {
		t.Errorf("len = %d, want the cap 4", small.Len())
	}
	// The most recent entries survive.
	if _, ok := small.Get("s5"); !ok {
		t.Error("most recent entry dropped on load")
	}
}
