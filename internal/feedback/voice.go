package feedback

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hperssn/focusflow/internal/config"
)

const (
	voiceRateLimit = 1 // requests per second
	voiceBurst     = 3

	maxAudioBytes = 5 << 20
)

// ElevenLabs synthesizes speech and returns it as an audio/mpeg data URL.
type ElevenLabs struct {
	endpoint   string
	apiKey     config.Secret
	modelID    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewElevenLabs returns ErrNotConfigured when no API key is set.
func NewElevenLabs(cfg config.VoiceConfig) (*ElevenLabs, error) {
	if !cfg.APIKey.IsSet() {
		return nil, ErrNotConfigured
	}

	return &ElevenLabs{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + cfg.VoiceID,
		apiKey:   cfg.APIKey,
		modelID:  cfg.ModelID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(voiceRateLimit), voiceBurst),
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (v *ElevenLabs) Synthesize(ctx context.Context, text string) (string, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(speechRequest{
		Text:          text,
		ModelID:       v.modelID,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", v.apiKey.Value())

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("voice request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("voice service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(audio)))
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("voice service returned no audio")
	}

	return DataURL("audio/mpeg", audio), nil
}

func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
