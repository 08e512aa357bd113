package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"basketarb/pkg/utils"
)

func TestDiscordNotifier_SendsContent(t *testing.T) {
	var gotBody string
	var gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewDiscordNotifier(server.URL, utils.NopLogger())
	if !n.Enabled() {
		t.Fatal("Enabled() = false with webhook URL set")
	}

	n.Notify("Куплена корзина: ног 15, сумма 951000")

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %s", gotContentType)
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(gotBody), &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if payload.Content != "Куплена корзина: ног 15, сумма 951000" {
		t.Errorf("content = %q", payload.Content)
	}
}

func TestDiscordNotifier_DisabledWithoutURL(t *testing.T) {
	n := NewDiscordNotifier("", utils.NopLogger())
	if n.Enabled() {
		t.Error("Enabled() = true with empty URL")
	}

	// Не должно паниковать и куда-либо ходить
	n.Notify("ignored")
}

func TestDiscordNotifier_IgnoresDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := NewDiscordNotifier(server.URL, utils.NopLogger())

	// Ошибка доставки глотается
	n.Notify("message")
}

func TestDiscordNotifier_SkipsEmptyMessage(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	n := NewDiscordNotifier(server.URL, utils.NopLogger())
	n.Notify("")

	if called {
		t.Error("empty message must not be delivered")
	}
}
