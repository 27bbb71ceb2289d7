package voice

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/skysim/go-quadpilot/internal/httpc"
)

// GoogleTranscriber transcribes utterances with Google Cloud
// Speech-to-Text, the same backend the viewer-facing voice control has
// always used. Auth is an API key if provided, otherwise application
// default credentials.
type GoogleTranscriber struct {
	svc  *speech.Service
	lang string
}

// NewGoogleTranscriber creates the transcriber. apiKey may be empty, in
// which case GOOGLE_APPLICATION_CREDENTIALS / ADC are used.
func NewGoogleTranscriber(ctx context.Context, apiKey string) (*GoogleTranscriber, error) {
	// Route token and API traffic through the shared HTTP client so
	// timeouts apply.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpc.Client)

	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		creds, err := google.FindDefaultCredentials(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("speech credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech service: %w", err)
	}

	return &GoogleTranscriber{svc: svc, lang: "en-US"}, nil
}

// Transcribe implements Transcriber for PCM16 mono at SampleRate.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, pcm16 []byte) (string, error) {
	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: SampleRate,
			LanguageCode:    g.lang,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(pcm16),
		},
	}

	resp, err := g.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscribe, err)
	}

	for _, result := range resp.Results {
		for _, alt := range result.Alternatives {
			if text := strings.TrimSpace(alt.Transcript); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no hypothesis", ErrTranscribe)
}
