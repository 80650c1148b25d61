package feedback

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/metrics"
)

type fakeMessages struct {
	calls int
	msg   string
	err   error
}

func (f *fakeMessages) Generate(ctx context.Context, score float64, label domain.Label) (string, error) {
	f.calls++
	return f.msg, f.err
}

type fakeVoice struct {
	calls int
	text  string
	err   error
}

func (f *fakeVoice) Synthesize(ctx context.Context, text string) (string, error) {
	f.calls++
	f.text = text
	if f.err != nil {
		return "", f.err
	}
	return "data:audio/mpeg;base64,AAAA", nil
}

func TestEnrichGating(t *testing.T) {
	tests := []struct {
		score     float64
		wantMsg   bool
		wantVoice bool
	}{
		{100, false, false},
		{60, false, false},
		{59, true, false},
		{40, true, false},
		{39, true, true},
		{0, true, true},
	}

	for _, tt := range tests {
		msgs := &fakeMessages{msg: "Stay with it."}
		voice := &fakeVoice{}
		e := NewEnricher(msgs, voice, zaptest.NewLogger(t), metrics.Nop())

		fb := e.Enrich(context.Background(), tt.score, domain.LabelFor(tt.score))

		assert.Equal(t, tt.wantMsg, fb.Message != "", "message at score %v", tt.score)
		assert.Equal(t, tt.wantVoice, fb.VoiceURL != "", "voice at score %v", tt.score)
		if tt.wantVoice {
			assert.Equal(t, "Stay with it.", voice.text)
		} else {
			assert.Zero(t, voice.calls)
		}
		if !tt.wantMsg {
			assert.Zero(t, msgs.calls)
		}
	}
}

func TestEnrichFallsBackToCannedMessage(t *testing.T) {
	m := metrics.Nop()
	msgs := &fakeMessages{err: errors.New("rate limited")}
	e := NewEnricher(msgs, nil, zaptest.NewLogger(t), m)

	fb := e.Enrich(context.Background(), 55, domain.LabelLosingFocus)

	assert.Equal(t, cannedMedium, fb.Message)
	assert.Empty(t, fb.VoiceURL)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntegrationFailures.WithLabelValues(metrics.IntegrationLLM)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Enrichments.WithLabelValues("message_canned")))
}

func TestEnrichWithoutCredentials(t *testing.T) {
	e := NewEnricher(nil, nil, nil, nil)

	fb := e.Enrich(context.Background(), 20, domain.LabelDistracted)
	assert.Equal(t, cannedLow, fb.Message)
	assert.Empty(t, fb.VoiceURL)
}

func TestEnrichVoiceFailureKeepsMessage(t *testing.T) {
	m := metrics.Nop()
	e := NewEnricher(&fakeMessages{msg: "Breathe."}, &fakeVoice{err: errors.New("quota")}, zaptest.NewLogger(t), m)

	fb := e.Enrich(context.Background(), 10, domain.LabelDistracted)
	assert.Equal(t, "Breathe.", fb.Message)
	assert.Empty(t, fb.VoiceURL)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntegrationFailures.WithLabelValues(metrics.IntegrationVoice)))
}

func TestCannedMessage(t *testing.T) {
	assert.Equal(t, cannedHigh, CannedMessage(70))
	assert.Equal(t, cannedMedium, CannedMessage(69.9))
	assert.Equal(t, cannedMedium, CannedMessage(40))
	assert.Equal(t, cannedLow, CannedMessage(39.9))
}

func TestNewClientsRequireCredentials(t *testing.T) {
	_, err := NewLLMMessages(config.LLMConfig{BaseURL: "http://localhost"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewElevenLabs(config.VoiceConfig{BaseURL: "http://localhost"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLLMMessagesGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "openai/gpt-3.5-turbo",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  One page at a time. You've got this!  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 10, "total_tokens": 50}
		}`)
	}))
	defer srv.Close()

	gen, err := NewLLMMessages(config.LLMConfig{
		BaseURL:   srv.URL,
		APIKey:    config.Secret("sk-test"),
		Model:     "openai/gpt-3.5-turbo",
		MaxTokens: 100,
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)

	msg, err := gen.Generate(context.Background(), 45, domain.LabelDistracted)
	require.NoError(t, err)
	assert.Equal(t, "One page at a time. You've got this!", msg)

	assert.Equal(t, "openai/gpt-3.5-turbo", body["model"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	raw, err := json.Marshal(messages)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "helpful study coach")
	assert.Contains(t, string(raw), "45/100 (Distracted)")
	assert.Contains(t, string(raw), `"role":"system"`)
	assert.Contains(t, string(raw), `"role":"user"`)
}

func TestElevenLabsSynthesize(t *testing.T) {
	audio := []byte{0xff, 0xfb, 0x90, 0x00}
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "el-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	v, err := NewElevenLabs(config.VoiceConfig{
		BaseURL: srv.URL + "/v1/text-to-speech/",
		APIKey:  config.Secret("el-key"),
		VoiceID: "voice-1",
		ModelID: "eleven_monolingual_v1",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	url, err := v.Synthesize(context.Background(), "Take a short walk.")
	require.NoError(t, err)
	assert.Equal(t, "data:audio/mpeg;base64,"+base64.StdEncoding.EncodeToString(audio), url)
	assert.Equal(t, "Take a short walk.", got.Text)
	assert.Equal(t, "eleven_monolingual_v1", got.ModelID)
	assert.Equal(t, 0.5, got.VoiceSettings.Stability)
	assert.Equal(t, 0.75, got.VoiceSettings.SimilarityBoost)
}

func TestElevenLabsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	v, err := NewElevenLabs(config.VoiceConfig{BaseURL: srv.URL, APIKey: config.Secret("el-key"), VoiceID: "v", Timeout: time.Second})
	require.NoError(t, err)

	_, err = v.Synthesize(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
