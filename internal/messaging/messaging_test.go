package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("hello", facebookLimit)
	assert.Equal(t, []string{"hello"}, parts)
}

func TestSplitMessageNumbersParts(t *testing.T) {
	text := strings.Repeat("x", 2500)
	parts := splitMessage(text, facebookLimit)

	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "1/2: "))
	assert.True(t, strings.HasPrefix(parts[1], "2/2: "))
	for _, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), facebookLimit)
	}

	var joined strings.Builder
	for _, p := range parts {
		joined.WriteString(strings.SplitN(p, ": ", 2)[1])
	}
	assert.Equal(t, text, joined.String())
}

func TestSplitMessageInstagramTighterLimit(t *testing.T) {
	text := strings.Repeat("y", 1500)
	parts := splitMessage(text, instagramLimit)

	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), instagramLimit)
	}
}

func TestSendMetaPostsEachPart(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-123", r.URL.Query().Get("access_token"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		got = append(got, payload)
		fmt.Fprint(w, `{"message_id":"m1"}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURLs(srv.URL, srv.URL)
	text := strings.Repeat("z", 2100)
	require.NoError(t, c.SendMeta(context.Background(), "token-123", "user-9", PlatformFacebook, text))

	require.Len(t, got, 2)
	recipient := got[0]["recipient"].(map[string]any)
	assert.Equal(t, "user-9", recipient["id"])
	msg := got[0]["message"].(map[string]any)
	assert.True(t, strings.HasPrefix(msg["text"].(string), "1/2: "))
}

func TestSendTelegram(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURLs(srv.URL, srv.URL)
	require.NoError(t, c.SendTelegram(context.Background(), "bot-token", "chat-7", "Hi there"))

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "chat-7", gotPayload["chat_id"])
	assert.Equal(t, "Hi there", gotPayload["text"])
}

func TestSendMetaSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"invalid token"}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURLs(srv.URL, srv.URL)
	err := c.SendMeta(context.Background(), "bad", "user", PlatformFacebook, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestSplitMessagePrefersWordBoundaries(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet ", 100))
	parts := splitMessage(text, instagramLimit)

	require.Greater(t, len(parts), 1)
	for _, p := range parts[:len(parts)-1] {
		body := strings.SplitN(p, ": ", 2)[1]
		assert.True(t, strings.HasSuffix(body, " "), "piece should end at a word boundary")
	}

	var joined strings.Builder
	for _, p := range parts {
		joined.WriteString(strings.SplitN(p, ": ", 2)[1])
	}
	assert.Equal(t, text, joined.String())
}
