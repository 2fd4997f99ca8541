package stt

import (
	"context"
	"os"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleSpeech does one-shot recognition of short answer fragments.
// Interviews are conducted in the language given by STT_LANGUAGE
// (default en-US).
type GoogleSpeech struct {
	c *speech.Client

	language     string
	encoding     speechpb.RecognitionConfig_AudioEncoding
	sampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	lang := os.Getenv("STT_LANGUAGE")
	if lang == "" {
		lang = "en-US"
	}

	return &GoogleSpeech{
		c:            c,
		language:     lang,
		encoding:     speechpb.RecognitionConfig_LINEAR16,
		sampleRateHz: 16000,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte) (string, float64, error) {
	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.encoding,
			SampleRateHertz:            g.sampleRateHz,
			LanguageCode:               g.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", 0, err
	}

	// Recognize can return several results; keep the most confident one.
	var bestText string
	var bestConf float64
	for _, r := range resp.Results {
		for _, alt := range r.Alternatives {
			if alt.Transcript != "" && float64(alt.Confidence) >= bestConf {
				bestText = alt.Transcript
				bestConf = float64(alt.Confidence)
			}
		}
	}

	return bestText, bestConf, nil
}
