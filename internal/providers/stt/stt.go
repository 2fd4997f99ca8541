package stt

import "context"

// Provider transcribes one recorded answer fragment. Voice input is
// optional; transcripts feed the same draft that manual typing fills.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte) (text string, confidence float64, err error)
	Close() error
}
