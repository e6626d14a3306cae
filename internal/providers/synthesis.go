package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/fallback"
)

type openAISpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func openAISynthesizer(client *http.Client, apiKey string) fallback.Provider[SynthesisRequest, Synthesis] {
	return fallback.Provider[SynthesisRequest, Synthesis]{
		Name: NameOpenAI,
		Invoke: func(ctx context.Context, req SynthesisRequest) (Synthesis, error) {
			if req.Text == "" {
				return Synthesis{}, ErrEmptyInput
			}

			voice := req.Voice
			if voice == "" {
				voice = "alloy"
			}
			body, err := json.Marshal(openAISpeechRequest{
				Model:          "tts-1",
				Input:          req.Text,
				Voice:          voice,
				ResponseFormat: "mp3",
			})
			if err != nil {
				return Synthesis{}, err
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
				"https://api.openai.com/v1/audio/speech", bytes.NewReader(body))
			if err != nil {
				return Synthesis{}, err
			}
			httpReq.Header.Set("Authorization", "Bearer "+apiKey)
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(httpReq)
			if err != nil {
				return Synthesis{}, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return Synthesis{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
			}

			audio, err := io.ReadAll(resp.Body)
			if err != nil {
				return Synthesis{}, err
			}
			return Synthesis{Audio: audio, Format: "mp3"}, nil
		},
	}
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func elevenLabsSynthesizer(client *http.Client, apiKey, defaultVoice string) fallback.Provider[SynthesisRequest, Synthesis] {
	return fallback.Provider[SynthesisRequest, Synthesis]{
		Name: NameElevenLabs,
		Invoke: func(ctx context.Context, req SynthesisRequest) (Synthesis, error) {
			if req.Text == "" {
				return Synthesis{}, ErrEmptyInput
			}

			voice := req.Voice
			if voice == "" {
				voice = defaultVoice
			}
			if voice == "" {
				return Synthesis{}, fmt.Errorf("no elevenlabs voice configured")
			}

			body, err := json.Marshal(elevenLabsRequest{
				Text:    req.Text,
				ModelID: "eleven_multilingual_v2",
			})
			if err != nil {
				return Synthesis{}, err
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
				"https://api.elevenlabs.io/v1/text-to-speech/"+voice, bytes.NewReader(body))
			if err != nil {
				return Synthesis{}, err
			}
			httpReq.Header.Set("xi-api-key", apiKey)
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Accept", "audio/mpeg")

			resp, err := client.Do(httpReq)
			if err != nil {
				return Synthesis{}, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return Synthesis{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
			}

			audio, err := io.ReadAll(resp.Body)
			if err != nil {
				return Synthesis{}, err
			}
			return Synthesis{Audio: audio, Format: "mp3"}, nil
		},
	}
}
