// Package providers defines the external capability contracts (translation,
// speech synthesis, speech-to-text) and builds the fallback chains from
// whatever credentials are configured. A provider with no credentials is
// simply left out of its chain; it is never an error.
package providers

import (
	"strings"
)

// TranslationRequest asks for text in one language to be rendered in
// another.
type TranslationRequest struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
}

// Translation is a translated utterance.
type Translation struct {
	Text string
}

// SynthesisRequest asks for spoken audio of a piece of text.
type SynthesisRequest struct {
	Text     string
	Language string
	Voice    string
}

// Synthesis carries the synthesized audio. Empty audio is the degraded
// default; clients fall back to browser-side speech.
type Synthesis struct {
	Audio  []byte
	Format string
}

// TranscriptionRequest asks for text from an audio payload.
type TranscriptionRequest struct {
	Audio    []byte
	MimeType string
	Language string
}

// Transcription is recognized speech. An empty Text is the degraded
// default; the router skips fan-out for it.
type Transcription struct {
	Text string
}

// baseLanguage strips the region subtag: "en-US" -> "en". Some providers
// only accept the primary subtag.
func baseLanguage(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}
