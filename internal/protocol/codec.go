package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// EncodeRequest serializes a prediction payload to JSON and writes it to w.
// The payload mirrors the envelope's incoming fields.
func EncodeRequest(w io.Writer, payload any) error {
	if payload == nil {
		return fmt.Errorf("prediction payload is nil")
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	return nil
}

// DecodeResponse reads and validates a PredictionResponse from r. A response
// without an output field, or whose output is not a data URI, is an error.
// The raw bytes read are returned in every case so callers can log what the
// worker actually sent.
func DecodeResponse(r io.Reader) (*PredictionResponse, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, data, fmt.Errorf("failed to read response: %w", err)
	}

	if len(data) == 0 {
		return nil, data, fmt.Errorf("worker produced an empty response")
	}

	var resp PredictionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, data, fmt.Errorf("worker output is not valid JSON: %w", err)
	}

	if resp.Output == nil {
		if resp.Error != "" {
			return nil, data, fmt.Errorf("response missing output (worker error: %s)", resp.Error)
		}
		return nil, data, fmt.Errorf("response missing required field: output")
	}

	if _, err := ParseDataURI(*resp.Output); err != nil {
		return nil, data, fmt.Errorf("invalid output: %w", err)
	}

	return &resp, data, nil
}
