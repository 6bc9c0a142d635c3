package operation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattjoyce/synapse-gw/internal/protocol"
	"github.com/mattjoyce/synapse-gw/internal/synapse"
)

const (
	// MockAudio is returned for mock queries without calling a worker.
	MockAudio = "data:audio/wav;base64,get_mogged"
	// GenerationFailed is the error_message of any failed generation.
	GenerationFailed = "Some error from the generation :/"
)

// TextToSpeechClone forwards speech cloning queries to a worker.
type TextToSpeechClone struct {
	Base
	backend  Backend
	endpoint string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTextToSpeechClone builds the operation. workerURL is the worker base
// URL; queries are posted to its predictions path.
func NewTextToSpeechClone(b Backend, workerURL string, timeout time.Duration, admission Admission, logger *slog.Logger) *TextToSpeechClone {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextToSpeechClone{
		Base:     Base{Admission: admission},
		backend:  b,
		endpoint: PredictionsEndpoint(workerURL),
		timeout:  timeout,
		logger:   logger.With("component", "operation"),
	}
}

// PredictionsEndpoint joins a worker base URL and the predictions path.
func PredictionsEndpoint(workerURL string) string {
	return strings.TrimRight(workerURL, "/") + "/" + protocol.PredictionsPath
}

// Endpoint returns the worker URL queries are posted to.
func (o *TextToSpeechClone) Endpoint() string { return o.endpoint }

func (o *TextToSpeechClone) Forward(ctx context.Context, env synapse.Envelope) (out synapse.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("forward panicked", "panic", fmt.Sprint(r))
			out = failOrNil(env)
		}
	}()

	tts, ok := env.(synapse.TextToSpeechClone)
	if !ok {
		o.logger.Error("unexpected envelope type", "type", fmt.Sprintf("%T", env))
		return failOrNil(env)
	}

	if tts.Mock() {
		return tts.WithOutgoing(synapse.SpeechSucceeded(MockAudio))
	}

	res := o.backend.Call(ctx, o.endpoint, tts.Incoming(), o.timeout)
	audio, ok := res.Output()
	if !ok {
		o.logger.Warn("worker returned no audio",
			"query_id", tts.Header().QueryID,
			"reason", res.Reason(),
		)
		return tts.Fail(GenerationFailed)
	}
	if uri, err := protocol.ParseDataURI(audio); err != nil || !uri.IsAudio() {
		o.logger.Warn("worker output is not audio",
			"query_id", tts.Header().QueryID,
			"media_type", uri.MediaType,
		)
		return tts.Fail(GenerationFailed)
	}
	return tts.WithOutgoing(synapse.SpeechSucceeded(audio))
}

func failOrNil(env synapse.Envelope) synapse.Envelope {
	if env == nil {
		return nil
	}
	return env.Fail(GenerationFailed)
}
