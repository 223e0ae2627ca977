// Package google provides a Google Cloud Text-to-Speech synthesis backend.
package google

import (
	"context"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

// Adapter implements synthesis.Synthesizer using Google Cloud TTS. Requires
// GOOGLE_APPLICATION_CREDENTIALS to be set.
type Adapter struct {
	client *texttospeech.Client
}

func New(ctx context.Context) (*Adapter, error) {
	c, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: c}, nil
}

func (a *Adapter) Close() error { return a.client.Close() }

func (a *Adapter) Synthesize(ctx context.Context, text, lang, voice string) ([]byte, string, error) {
	resp, err := a.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, "", err
	}
	return resp.AudioContent, "audio/mpeg", nil
}
