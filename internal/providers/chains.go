package providers

import (
	"errors"
	"net/http"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/fallback"
)

// Provider names, in their default chain order.
const (
	NameOpenAI     = "openai"
	NameDeepSeek   = "deepseek"
	NameMyMemory   = "mymemory"
	NameElevenLabs = "elevenlabs"
	NameWhisper    = "whisper"
)

// ErrEmptyInput marks a caller-input problem no provider can fix. The stop
// predicate halts the chain on it instead of burning through providers.
var ErrEmptyInput = errors.New("empty input")

// Config carries the externally-supplied provider credentials. Empty
// fields disable the corresponding provider.
type Config struct {
	OpenAIAPIKey     string
	DeepSeekAPIKey   string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	WhisperURL       string // local whisper-compatible endpoint
	RequestTimeout   time.Duration
}

func (c Config) httpClient() *http.Client {
	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func stopOnEmptyInput(err error) bool {
	return errors.Is(err, ErrEmptyInput)
}

// NewTranslationChain builds the translation chain: OpenAI, then DeepSeek,
// then MyMemory (no credentials needed). The degraded default echoes the
// source text unmodified so students always receive something readable.
func NewTranslationChain(cfg Config) *fallback.Invoker[TranslationRequest, Translation] {
	client := cfg.httpClient()
	var chain []fallback.Provider[TranslationRequest, Translation]
	if cfg.OpenAIAPIKey != "" {
		chain = append(chain, openAITranslator(client, cfg.OpenAIAPIKey))
	}
	if cfg.DeepSeekAPIKey != "" {
		chain = append(chain, deepSeekTranslator(client, cfg.DeepSeekAPIKey))
	}
	chain = append(chain, myMemoryTranslator(client))

	return fallback.NewInvoker(
		"translation",
		func(req TranslationRequest) Translation { return Translation{Text: req.Text} },
		chain,
		fallback.WithStopPredicate[TranslationRequest, Translation](stopOnEmptyInput),
	)
}

// NewTranscriptionChain builds the speech-to-text chain: OpenAI, then a
// local whisper-compatible endpoint. The degraded default is an empty
// transcript, which downstream treats as nothing to broadcast.
func NewTranscriptionChain(cfg Config) *fallback.Invoker[TranscriptionRequest, Transcription] {
	client := cfg.httpClient()
	var chain []fallback.Provider[TranscriptionRequest, Transcription]
	if cfg.OpenAIAPIKey != "" {
		chain = append(chain, openAITranscriber(client, cfg.OpenAIAPIKey))
	}
	if cfg.WhisperURL != "" {
		chain = append(chain, whisperTranscriber(client, cfg.WhisperURL))
	}

	return fallback.NewInvoker(
		"transcription",
		func(TranscriptionRequest) Transcription { return Transcription{} },
		chain,
		fallback.WithStopPredicate[TranscriptionRequest, Transcription](stopOnEmptyInput),
	)
}

// SynthesisChains builds per-request synthesis chains. Students can pin a
// preferred provider through their connection settings; the preferred
// provider is tried first and the rest of the chain still backs it up.
type SynthesisChains struct {
	providers []fallback.Provider[SynthesisRequest, Synthesis]
}

// NewSynthesisChains builds the synthesis provider set: OpenAI, then
// ElevenLabs.
func NewSynthesisChains(cfg Config) *SynthesisChains {
	client := cfg.httpClient()
	var chain []fallback.Provider[SynthesisRequest, Synthesis]
	if cfg.OpenAIAPIKey != "" {
		chain = append(chain, openAISynthesizer(client, cfg.OpenAIAPIKey))
	}
	if cfg.ElevenLabsAPIKey != "" {
		chain = append(chain, elevenLabsSynthesizer(client, cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoice))
	}
	return &SynthesisChains{providers: chain}
}

// ChainFor returns a synthesis chain with the preferred provider moved to
// the front. An unknown or empty preference returns the default order.
// The degraded default is an empty payload; the translation text still
// reaches the student without audio.
func (s *SynthesisChains) ChainFor(preferred string) *fallback.Invoker[SynthesisRequest, Synthesis] {
	ordered := s.providers
	if preferred != "" {
		for i, p := range s.providers {
			if p.Name == preferred {
				reordered := make([]fallback.Provider[SynthesisRequest, Synthesis], 0, len(s.providers))
				reordered = append(reordered, s.providers[i])
				reordered = append(reordered, s.providers[:i]...)
				reordered = append(reordered, s.providers[i+1:]...)
				ordered = reordered
				break
			}
		}
	}
	return fallback.NewInvoker(
		"synthesis",
		func(SynthesisRequest) Synthesis { return Synthesis{} },
		ordered,
		fallback.WithStopPredicate[SynthesisRequest, Synthesis](stopOnEmptyInput),
	)
}

// ProviderNames returns the configured synthesis provider names in default
// order.
func (s *SynthesisChains) ProviderNames() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name
	}
	return names
}
