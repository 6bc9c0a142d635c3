package synapse

import "encoding/json"

const (
	DefaultText           = "This is a sample recording"
	DefaultAlpha          = 0.3
	DefaultBeta           = 0.7
	DefaultDiffusionSteps = 10
	DefaultEmbeddingScale = 1.0
	DefaultSeed           = 0
)

// TextToSpeechCloneIncoming holds the request fields of a speech cloning query.
type TextToSpeechCloneIncoming struct {
	// Text is the text to speak.
	Text string `json:"text" validate:"max=5000"`
	// Reference is a reference speaker sample, base64 audio or a downloadable
	// URL. Empty means the engine's default voice.
	Reference string `json:"reference"`
	// Alpha sets the timbre; lower values lean on the reference speech.
	Alpha float64 `json:"alpha" validate:"gte=0,lte=1"`
	// Beta sets the prosody; lower values lean on the reference speech.
	Beta           float64 `json:"beta" validate:"gte=0,lte=1"`
	DiffusionSteps int     `json:"diffusion_steps" validate:"gte=1,lte=200"`
	// EmbeddingScale; higher values give more pronounced emotion.
	EmbeddingScale float64 `json:"embedding_scale" validate:"gte=0,lte=10"`
	Seed           int     `json:"seed"`
	// IsMock bypasses the worker call and returns a canned response.
	IsMock bool   `json:"is_mock"`
	Engine Engine `json:"engine"`
}

// DefaultTextToSpeechCloneIncoming returns the incoming fields with every
// default applied.
func DefaultTextToSpeechCloneIncoming() TextToSpeechCloneIncoming {
	return TextToSpeechCloneIncoming{
		Text:           DefaultText,
		Reference:      "",
		Alpha:          DefaultAlpha,
		Beta:           DefaultBeta,
		DiffusionSteps: DefaultDiffusionSteps,
		EmbeddingScale: DefaultEmbeddingScale,
		Seed:           DefaultSeed,
		IsMock:         false,
		Engine:         EngineStyleTTS2,
	}
}

// TextToSpeechCloneOutgoing is the worker-produced half of the envelope.
// Build it with SpeechSucceeded or SpeechFailed.
type TextToSpeechCloneOutgoing struct {
	audioB64     *string
	errorMessage *string
}

// SpeechSucceeded returns outgoing fields carrying a generated audio payload.
func SpeechSucceeded(audioB64 string) TextToSpeechCloneOutgoing {
	return TextToSpeechCloneOutgoing{audioB64: stringPtr(audioB64)}
}

// SpeechFailed returns outgoing fields carrying only an error message.
func SpeechFailed(msg string) TextToSpeechCloneOutgoing {
	return TextToSpeechCloneOutgoing{errorMessage: stringPtr(msg)}
}

// TextToSpeechCloneResponse is the external shape of a speech cloning result.
type TextToSpeechCloneResponse struct {
	AudioB64     *string `json:"audio_b64"`
	ErrorMessage *string `json:"error_message"`
}

// TextToSpeechClone is the speech cloning envelope.
type TextToSpeechClone struct {
	header   Header
	incoming TextToSpeechCloneIncoming
	outgoing TextToSpeechCloneOutgoing
}

// NewTextToSpeechClone builds an envelope with no outgoing fields set.
func NewTextToSpeechClone(h Header, in TextToSpeechCloneIncoming) TextToSpeechClone {
	return TextToSpeechClone{header: h, incoming: in}
}

func decodeTextToSpeechClone(h Header, body []byte) (Envelope, error) {
	in := DefaultTextToSpeechCloneIncoming()
	if err := unmarshalOver(body, &in); err != nil {
		return nil, err
	}
	if err := validateFields(in); err != nil {
		return nil, err
	}
	return NewTextToSpeechClone(h, in), nil
}

func (s TextToSpeechClone) Header() Header                      { return s.header }
func (s TextToSpeechClone) Task() Task                          { return TaskTextToSpeechClone }
func (s TextToSpeechClone) Engine() Engine                      { return s.incoming.Engine }
func (s TextToSpeechClone) Mock() bool                          { return s.incoming.IsMock }
func (s TextToSpeechClone) Incoming() TextToSpeechCloneIncoming { return s.incoming }

// AudioB64 returns the generated audio payload, if set.
func (s TextToSpeechClone) AudioB64() (string, bool) {
	if s.outgoing.audioB64 == nil {
		return "", false
	}
	return *s.outgoing.audioB64, true
}

func (s TextToSpeechClone) ErrorMessage() (string, bool) {
	if s.outgoing.errorMessage == nil {
		return "", false
	}
	return *s.outgoing.errorMessage, true
}

// WithOutgoing returns a copy of s carrying out. s itself is unchanged.
func (s TextToSpeechClone) WithOutgoing(out TextToSpeechCloneOutgoing) TextToSpeechClone {
	s.outgoing = out
	return s
}

func (s TextToSpeechClone) Fail(msg string) Envelope {
	return s.WithOutgoing(SpeechFailed(msg))
}

func (s TextToSpeechClone) Project() any {
	resp := TextToSpeechCloneResponse{}
	if audio, ok := s.AudioB64(); ok {
		resp.AudioB64 = stringPtr(audio)
	}
	if msg, ok := s.ErrorMessage(); ok {
		resp.ErrorMessage = stringPtr(msg)
	}
	return resp
}

// MarshalJSON renders the full envelope for logs and debugging. The header is
// left out.
func (s TextToSpeechClone) MarshalJSON() ([]byte, error) {
	resp := s.Project().(TextToSpeechCloneResponse)
	return json.Marshal(struct {
		TextToSpeechCloneIncoming
		TextToSpeechCloneResponse
	}{s.incoming, resp})
}
