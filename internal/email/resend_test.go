package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finance-ledger-go/internal/config"
)

func TestResendSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("path = %s, want /emails", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	c, err := NewResendClient(&config.Config{ResendKey: "re_test", ResendBaseURL: srv.URL, EmailFrom: "App <a@b.c>"})
	if err != nil {
		t.Fatal(err)
	}
	err = c.Send(context.Background(), Message{To: []string{"u@example.com"}, Subject: "Hi", HTML: "<p>x</p>"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got["subject"] != "Hi" || got["from"] != "App <a@b.c>" {
		t.Errorf("payload = %v", got)
	}
}

func TestResendSendErrors(t *testing.T) {
	c, err := NewResendClient(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Send(context.Background(), Message{To: []string{"u@example.com"}}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured error = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"bad from address"}`))
	}))
	defer srv.Close()
	c, err = NewResendClient(&config.Config{ResendKey: "k", ResendBaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	err = c.Send(context.Background(), Message{To: []string{"u@example.com"}})
	if err == nil || !strings.HasPrefix(err.Error(), "resend: ") {
		t.Errorf("error = %v, want wrapped API failure", err)
	}
}

func TestRenderBudgetAlertEscapes(t *testing.T) {
	html, err := RenderBudgetAlert(BudgetAlert{Name: "<b>Ann</b>", AccountName: "Main", PercentageUsed: "85.0"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<b>Ann</b>") || !strings.Contains(html, "85.0%") {
		t.Errorf("rendered html = %s", html)
	}
}
