package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/samber/mo"

	"xispeech.dev/pkg/elevenlabs"
	"xispeech.dev/pkg/elevenlabs/models"
	"xispeech.dev/pkg/elevenlabs/voices"
)

const (
	basicPrompt    = "Happiness often hides in ordinary moments, waiting for you to pause, smile, and simply enjoy being present."
	advancedPrompt = "Life feels lighter when you slow down, take a deep breath, and notice the small details around you."
)

type options struct {
	apiKey            string
	baseURL           string
	text              string
	voice             string
	model             string
	format            string
	outputDir         string
	advanced          bool
	previousRequestID string
	timeout           time.Duration
	debug             bool
	now               func() time.Time
}

func main() {
	opts := options{now: time.Now}

	flag.StringVar(&opts.baseURL, "base-url", elevenlabs.DefaultBaseURL, "ElevenLabs API base URL.")
	flag.StringVar(&opts.text, "text", "", "Text to synthesize. Defaults to a sample prompt.")
	flag.StringVar(&opts.voice, "voice", "", "Voice name or ID. Defaults to Arnold, or Rachel with -advanced.")
	flag.StringVar(&opts.model, "model", "", "Model ID. Defaults to eleven_turbo_v2_5, or eleven_v3 with -advanced.")
	flag.StringVar(&opts.format, "format", models.DefaultOutputFormat, "Output format.")
	flag.StringVar(&opts.outputDir, "out", "outputs", "Directory the audio file is written to.")
	flag.BoolVar(&opts.advanced, "advanced", false, "Send explicit voice settings (stability 1.0, similarity boost 0.9).")
	flag.StringVar(&opts.previousRequestID, "previous-request-id", "", "Request ID of the preceding generation, for continuity.")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall request timeout.") //nolint:mnd
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging.")
	flag.Parse()

	opts.apiKey = os.Getenv("ELEVENLABS_API_KEY")

	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, opts, os.Stdout)
	if err != nil {
		slog.Error("Failed to synthesize speech", "error", err)
		os.Exit(1) //nolint:gocritic
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	if strings.TrimSpace(opts.apiKey) == "" {
		return errors.New("please set ELEVENLABS_API_KEY environment variable")
	}

	_, _ = fmt.Fprintln(stdout, "Creating ElevenLabs client...")

	client := elevenlabs.NewClient(opts.apiKey,
		elevenlabs.WithBaseURL(opts.baseURL),
		elevenlabs.WithLogger(slog.Default()),
	)

	builder := newBuilder(client, opts)

	if opts.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	resp, err := builder.ExecuteWithResponse(ctx)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(stdout, "Generated %d bytes of audio\n", len(resp.Audio))

	if resp.RequestID != "" {
		_, _ = fmt.Fprintf(stdout, "Request ID: %s\n", resp.RequestID)
	}

	err = os.MkdirAll(opts.outputDir, 0o755) //nolint:mnd
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fileName := filepath.Join(opts.outputDir, fmt.Sprintf("%d.%s", opts.now().Unix(), models.Codec(opts.format)))

	err = os.WriteFile(fileName, resp.Audio, 0o644) //nolint:mnd,gosec
	if err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Audio saved to %s\n", fileName)

	return nil
}

func newBuilder(client *elevenlabs.Client, opts options) *elevenlabs.TextToSpeechBuilder {
	prompt, voice, model := basicPrompt, voices.Arnold, models.ElevenTurboV2_5
	if opts.advanced {
		prompt, voice, model = advancedPrompt, voices.Rachel, models.ElevenV3
	}

	text := opts.text
	if text == "" {
		text = prompt
	}

	builder := client.TextToSpeech(text).OutputFormat(opts.format)

	if opts.voice != "" {
		builder.VoiceID(voices.Resolve(opts.voice))
	} else {
		builder.Voice(voice)
	}

	if opts.model != "" {
		builder.Model(opts.model)
	} else {
		builder.Model(model)
	}

	if opts.advanced {
		builder.VoiceSettings(elevenlabs.NewVoiceSettings(mo.Some(1.0), mo.Some(0.9), mo.None[float64](), mo.None[bool](), mo.None[float64]()))
	}

	if opts.previousRequestID != "" {
		builder.PreviousRequestIDs(opts.previousRequestID)
	}

	return builder
}
