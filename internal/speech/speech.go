// Package speech turns hint and narration text into audio and plays it without blocking
// the game.
package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Synthesizer converts text to encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthFunc adapts a function to Synthesizer.
type SynthFunc func(ctx context.Context, text string) ([]byte, error)

func (f SynthFunc) Synthesize(ctx context.Context, text string) ([]byte, error) { return f(ctx, text) }

// Player plays encoded audio to completion or until ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// OpenAISynthesizer uses the audio speech endpoint and returns MP3 bytes.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

// NewOpenAISynthesizer builds a synthesizer. Empty voice selects alloy.
func NewOpenAISynthesizer(apiKey, voice, baseURL string) (*OpenAISynthesizer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("new openai synthesizer: api key is empty")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	v := openai.VoiceAlloy
	if voice != "" {
		v = openai.SpeechVoice(voice)
	}
	return &OpenAISynthesizer{client: openai.NewClientWithConfig(cfg), model: openai.TTSModel1, voice: v}, nil
}

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()
	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai speech: read body: %w", err)
	}
	return audio, nil
}

// CommandPlayer writes audio to a temporary file and runs an external player on it, for
// example "mpg123 -q" or "afplay".
type CommandPlayer struct {
	Command string
	Args    []string
	Ext     string
}

// ParseCommand splits a player command line such as "mpg123 -q".
func ParseCommand(line string) (CommandPlayer, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return CommandPlayer{}, fmt.Errorf("player command is empty")
	}
	return CommandPlayer{Command: fields[0], Args: fields[1:], Ext: ".mp3"}, nil
}

func (p CommandPlayer) Play(ctx context.Context, audio []byte) error {
	f, err := os.CreateTemp("", "lakecross-*"+p.Ext)
	if err != nil {
		return fmt.Errorf("play: create temp file: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.Write(audio); err != nil {
		_ = f.Close()
		return fmt.Errorf("play: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("play: close temp file: %w", err)
	}

	args := append(append([]string{}, p.Args...), path)
	cmd := exec.CommandContext(ctx, p.Command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("play: %s: %w: %s", p.Command, err, strings.TrimSpace(string(out)))
	}
	return nil
}
