package protocol

import (
	"fmt"
	"strings"
)

// PredictionsPath is the worker endpoint that runs one generation.
const PredictionsPath = "predictions"

// PredictionResponse is the body a worker returns from POST /predictions.
// Output carries the generated payload as a data URI.
type PredictionResponse struct {
	Output *string `json:"output"`
	// Error is an optional worker-side explanation; it is logged, never
	// surfaced to gateway callers.
	Error string `json:"error,omitempty"`
}

// DataURI is a parsed RFC 2397 data URI.
type DataURI struct {
	MediaType string // e.g. "audio/wav"; empty when omitted
	Base64    bool
	Data      string
}

// ParseDataURI splits s into its media type, encoding flag and data.
func ParseDataURI(s string) (DataURI, error) {
	const scheme = "data:"
	if !strings.HasPrefix(s, scheme) {
		return DataURI{}, fmt.Errorf("not a data URI")
	}
	rest := s[len(scheme):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return DataURI{}, fmt.Errorf("data URI missing ',' separator")
	}

	meta, data := rest[:comma], rest[comma+1:]
	uri := DataURI{Data: data}
	if strings.HasSuffix(meta, ";base64") {
		uri.Base64 = true
		meta = strings.TrimSuffix(meta, ";base64")
	}
	uri.MediaType = meta
	if uri.Base64 && data == "" {
		return DataURI{}, fmt.Errorf("data URI has empty payload")
	}
	return uri, nil
}

// IsAudio reports whether the media type is audio/*.
func (d DataURI) IsAudio() bool {
	return strings.HasPrefix(d.MediaType, "audio/")
}
