package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/fallback"
)

// chatRequest is the OpenAI-compatible chat completion payload. DeepSeek
// exposes the same shape.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func translatePrompt(req TranslationRequest) string {
	return fmt.Sprintf(
		"Translate the following text from %s to %s. Reply with the translation only.\n\n%s",
		req.SourceLanguage, req.TargetLanguage, req.Text)
}

func chatTranslate(ctx context.Context, client *http.Client, endpoint, apiKey, model string, req TranslationRequest) (Translation, error) {
	if req.Text == "" {
		return Translation{}, ErrEmptyInput
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: translatePrompt(req)}},
	})
	if err != nil {
		return Translation{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Translation{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return Translation{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Translation{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Translation{}, err
	}
	if len(cr.Choices) == 0 {
		return Translation{}, fmt.Errorf("no completion choices returned")
	}
	return Translation{Text: cr.Choices[0].Message.Content}, nil
}

func openAITranslator(client *http.Client, apiKey string) fallback.Provider[TranslationRequest, Translation] {
	return fallback.Provider[TranslationRequest, Translation]{
		Name: NameOpenAI,
		Invoke: func(ctx context.Context, req TranslationRequest) (Translation, error) {
			return chatTranslate(ctx, client, "https://api.openai.com/v1/chat/completions", apiKey, "gpt-4o-mini", req)
		},
	}
}

func deepSeekTranslator(client *http.Client, apiKey string) fallback.Provider[TranslationRequest, Translation] {
	return fallback.Provider[TranslationRequest, Translation]{
		Name: NameDeepSeek,
		Invoke: func(ctx context.Context, req TranslationRequest) (Translation, error) {
			return chatTranslate(ctx, client, "https://api.deepseek.com/chat/completions", apiKey, "deepseek-chat", req)
		},
	}
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus int `json:"responseStatus"`
}

// myMemoryTranslator uses the free MyMemory API. No credentials required,
// which keeps the translation chain non-empty in every deployment.
func myMemoryTranslator(client *http.Client) fallback.Provider[TranslationRequest, Translation] {
	return fallback.Provider[TranslationRequest, Translation]{
		Name: NameMyMemory,
		Invoke: func(ctx context.Context, req TranslationRequest) (Translation, error) {
			if req.Text == "" {
				return Translation{}, ErrEmptyInput
			}

			q := url.Values{}
			q.Set("q", req.Text)
			q.Set("langpair", baseLanguage(req.SourceLanguage)+"|"+baseLanguage(req.TargetLanguage))

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
				"https://api.mymemory.translated.net/get?"+q.Encode(), nil)
			if err != nil {
				return Translation{}, err
			}

			resp, err := client.Do(httpReq)
			if err != nil {
				return Translation{}, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return Translation{}, fmt.Errorf("http %d", resp.StatusCode)
			}

			var mr myMemoryResponse
			if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
				return Translation{}, err
			}
			if mr.ResponseStatus != 200 || mr.ResponseData.TranslatedText == "" {
				return Translation{}, fmt.Errorf("mymemory status %d", mr.ResponseStatus)
			}
			return Translation{Text: mr.ResponseData.TranslatedText}, nil
		},
	}
}
