package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/fallback"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

func postAudio(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, req TranscriptionRequest) (Transcription, error) {
	if len(req.Audio) == 0 {
		return Transcription{}, ErrEmptyInput
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", "whisper-1"); err != nil {
		return Transcription{}, err
	}
	if req.Language != "" {
		if err := mw.WriteField("language", baseLanguage(req.Language)); err != nil {
			return Transcription{}, err
		}
	}
	fw, err := mw.CreateFormFile("file", "audio.webm")
	if err != nil {
		return Transcription{}, err
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return Transcription{}, err
	}
	if err := mw.Close(); err != nil {
		return Transcription{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return Transcription{}, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Transcription{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Transcription{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Transcription{}, err
	}
	return Transcription{Text: tr.Text}, nil
}

func openAITranscriber(client *http.Client, apiKey string) fallback.Provider[TranscriptionRequest, Transcription] {
	return fallback.Provider[TranscriptionRequest, Transcription]{
		Name: NameOpenAI,
		Invoke: func(ctx context.Context, req TranscriptionRequest) (Transcription, error) {
			return postAudio(ctx, client, "https://api.openai.com/v1/audio/transcriptions",
				map[string]string{"Authorization": "Bearer " + apiKey}, req)
		},
	}
}

// whisperTranscriber targets a local whisper.cpp-compatible server exposing
// the same multipart transcription endpoint.
func whisperTranscriber(client *http.Client, baseURL string) fallback.Provider[TranscriptionRequest, Transcription] {
	return fallback.Provider[TranscriptionRequest, Transcription]{
		Name: NameWhisper,
		Invoke: func(ctx context.Context, req TranscriptionRequest) (Transcription, error) {
			return postAudio(ctx, client, baseURL+"/v1/audio/transcriptions", nil, req)
		},
	}
}
