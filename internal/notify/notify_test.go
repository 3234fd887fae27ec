package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	name string
	err  error
	sent []Notification
}

func (f *fakeNotifier) Send(n Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) Name() string { return f.name }

func TestBell(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bell := NewBell(&buf)

	require.NoError(t, bell.Send(Notification{Title: "Workflow failed"}))
	assert.Equal(t, "\a", buf.String())
	assert.Equal(t, "bell", bell.Name())
}

func TestMulti(t *testing.T) {
	t.Parallel()

	t.Run("attempts every notifier", func(t *testing.T) {
		t.Parallel()

		first := &fakeNotifier{name: "first", err: errors.New("boom")}
		second := &fakeNotifier{name: "second"}
		multi := NewMulti(first, second)

		err := multi.Send(Notification{Title: "Workflow failed", WorkflowID: "wf-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "first")
		assert.Len(t, first.sent, 1)
		assert.Len(t, second.sent, 1)
	})

	t.Run("first error wins", func(t *testing.T) {
		t.Parallel()

		first := &fakeNotifier{name: "first", err: errors.New("one")}
		second := &fakeNotifier{name: "second", err: errors.New("two")}
		multi := NewMulti(first, second)

		err := multi.Send(Notification{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "one")
		assert.NotContains(t, err.Error(), "two")
	})

	t.Run("name combines wrapped notifiers", func(t *testing.T) {
		t.Parallel()

		multi := NewMulti(&fakeNotifier{name: "bell"}, &fakeNotifier{name: "webhook"})
		assert.Equal(t, "multi(bell,webhook)", multi.Name())
	})
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	t.Run("generic format posts full notification", func(t *testing.T) {
		t.Parallel()

		payloads := make(chan map[string]string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			payloads <- payload
		}))
		defer server.Close()

		hook := NewWebhook(server.URL, FormatGeneric)
		err := hook.Send(Notification{
			Title:      "Workflow failed",
			Body:       "GPU pool exhausted",
			WorkflowID: "wf-1",
			Reason:     "backend error",
		})
		require.NoError(t, err)

		got := <-payloads
		assert.Equal(t, "Workflow failed", got["title"])
		assert.Equal(t, "GPU pool exhausted", got["body"])
		assert.Equal(t, "wf-1", got["workflow_id"])
		assert.Equal(t, "backend error", got["reason"])
	})

	t.Run("slack format posts text payload", func(t *testing.T) {
		t.Parallel()

		payloads := make(chan map[string]string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			payloads <- payload
		}))
		defer server.Close()

		hook := NewWebhook(server.URL, FormatSlack)
		err := hook.Send(Notification{Title: "Workflow timed out", Body: "after 5 minutes"})
		require.NoError(t, err)

		got := <-payloads
		assert.Equal(t, "Workflow timed out: after 5 minutes", got["text"])
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer server.Close()

		hook := NewWebhook(server.URL, FormatGeneric)
		err := hook.Send(Notification{Title: "Workflow failed"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), fmt.Sprint(http.StatusForbidden))
	})
}
