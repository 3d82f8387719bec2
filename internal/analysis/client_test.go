package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summariesFixture() []TrackSummary {
	return []TrackSummary{{
		ID:            3,
		Class:         "car",
		Confidence:    0.92,
		Distance:      45.3,
		DistanceKnown: true,
		Behaviour:     BehaviourMoving,
	}}
}

func TestClientAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("sends prompt and returns assessment text", func(t *testing.T) {
		t.Parallel()
		var gotAuth string
		var gotReq chatRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.Write([]byte(`{"choices":[{"message":{"content":" 建议飞向ID 3的汽车。 "}}]}`))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{Endpoint: srv.URL, APIKey: "k", Model: "deepseek-chat"})
		got, err := c.Analyze(context.Background(), summariesFixture())
		require.NoError(t, err)
		assert.Equal(t, "建议飞向ID 3的汽车。", got)

		assert.Equal(t, "Bearer k", gotAuth)
		assert.Equal(t, "deepseek-chat", gotReq.Model)
		require.Len(t, gotReq.Messages, 2)
		assert.Equal(t, "system", gotReq.Messages[0].Role)
		assert.Contains(t, gotReq.Messages[1].Content, "ID3: car")
		assert.False(t, gotReq.Stream)
	})

	t.Run("empty summaries short-circuit without a request", func(t *testing.T) {
		t.Parallel()
		c := NewClient(ClientConfig{Endpoint: "http://127.0.0.1:1", Model: "m"})
		got, err := c.Analyze(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "当前画面中未检测到任何目标。", got)
	})

	t.Run("non-200 maps to unavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{Endpoint: srv.URL, Model: "m"})
		_, err := c.Analyze(context.Background(), summariesFixture())
		assert.True(t, errors.Is(err, ErrAnalysisUnavailable))
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("empty body maps to unavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		c := NewClient(ClientConfig{Endpoint: srv.URL, Model: "m"})
		_, err := c.Analyze(context.Background(), summariesFixture())
		assert.True(t, errors.Is(err, ErrAnalysisUnavailable))
	})

	t.Run("malformed body maps to unavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{Endpoint: srv.URL, Model: "m"})
		_, err := c.Analyze(context.Background(), summariesFixture())
		assert.True(t, errors.Is(err, ErrAnalysisUnavailable))
	})

	t.Run("no choices maps to unavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{Endpoint: srv.URL, Model: "m"})
		_, err := c.Analyze(context.Background(), summariesFixture())
		assert.True(t, errors.Is(err, ErrAnalysisUnavailable))
	})

	t.Run("transport failure maps to unavailable", func(t *testing.T) {
		t.Parallel()
		c := NewClient(ClientConfig{Endpoint: "http://127.0.0.1:1", Model: "m"})
		_, err := c.Analyze(context.Background(), summariesFixture())
		assert.True(t, errors.Is(err, ErrAnalysisUnavailable))
	})
}

func TestSystemPromptMentionsDirectiveVocabulary(t *testing.T) {
	t.Parallel()
	// The interpreter's grammar and the prompt's suggested phrasing must
	// stay in sync.
	for _, phrase := range []string{"飞向ID", "远离"} {
		if !strings.Contains(systemPrompt, phrase) {
			t.Errorf("system prompt no longer mentions %q", phrase)
		}
	}
}
