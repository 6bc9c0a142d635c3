package protocol

import (
	"bytes"
	"strings"
	"testing"
)

type samplePayload struct {
	Text   string  `json:"text"`
	Alpha  float64 `json:"alpha"`
	Engine string  `json:"engine"`
}

func TestEncodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		wantErr bool
		checkFn func(t *testing.T, output string)
	}{
		{
			name:    "speech clone payload",
			payload: samplePayload{Text: "hello", Alpha: 0.3, Engine: "StyleTTS2"},
			checkFn: func(t *testing.T, output string) {
				if !strings.Contains(output, `"text":"hello"`) {
					t.Error("missing text field")
				}
				if !strings.Contains(output, `"engine":"StyleTTS2"`) {
					t.Error("missing engine field")
				}
			},
		},
		{
			name:    "nil payload",
			payload: nil,
			wantErr: true,
		},
		{
			name:    "unencodable payload",
			payload: map[string]any{"bad": make(chan int)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := EncodeRequest(&buf, tt.payload)

			if (err != nil) != tt.wantErr {
				t.Errorf("EncodeRequest() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkFn != nil {
				tt.checkFn(t, buf.String())
			}
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		checkFn func(t *testing.T, resp *PredictionResponse)
	}{
		{
			name:  "valid audio output",
			input: `{"output":"data:audio/wav;base64,UklGRg=="}`,
			checkFn: func(t *testing.T, resp *PredictionResponse) {
				if *resp.Output != "data:audio/wav;base64,UklGRg==" {
					t.Errorf("unexpected output %q", *resp.Output)
				}
			},
		},
		{
			name:  "extra fields are ignored",
			input: `{"output":"data:audio/wav;base64,AA","took_ms":1200}`,
		},
		{
			name:    "missing output",
			input:   `{"status":"done"}`,
			wantErr: true,
		},
		{
			name:    "null output",
			input:   `{"output":null}`,
			wantErr: true,
		},
		{
			name:    "worker error without output",
			input:   `{"error":"CUDA out of memory"}`,
			wantErr: true,
		},
		{
			name:    "output is not a data URI",
			input:   `{"output":"https://example.com/a.wav"}`,
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			input:   `{not json}`,
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _, err := DecodeResponse(strings.NewReader(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeResponse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkFn != nil {
				tt.checkFn(t, resp)
			}
		})
	}
}

func TestDecodeResponse_CapturesRawData(t *testing.T) {
	resp, raw, err := DecodeResponse(strings.NewReader(`not json at all`))
	if err == nil {
		t.Fatal("expected error")
	}
	if resp != nil {
		t.Error("expected nil response")
	}
	if string(raw) != "not json at all" {
		t.Errorf("expected raw data to be captured, got %q", raw)
	}
}

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		in        string
		wantErr   bool
		mediaType string
		base64    bool
		data      string
	}{
		{in: "data:audio/wav;base64,get_mogged", mediaType: "audio/wav", base64: true, data: "get_mogged"},
		{in: "data:,hello", mediaType: "", data: "hello"},
		{in: "data:text/plain,hi", mediaType: "text/plain", data: "hi"},
		{in: "data:audio/wav;base64,", wantErr: true},
		{in: "data:audio/wav;base64", wantErr: true},
		{in: "audio/wav;base64,AAAA", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			uri, err := ParseDataURI(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDataURI(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if uri.MediaType != tt.mediaType || uri.Base64 != tt.base64 || uri.Data != tt.data {
				t.Errorf("ParseDataURI(%q) = %+v", tt.in, uri)
			}
		})
	}

	uri, _ := ParseDataURI("data:audio/wav;base64,AA")
	if !uri.IsAudio() {
		t.Error("expected audio media type")
	}
	uri, _ = ParseDataURI("data:image/png;base64,AA")
	if uri.IsAudio() {
		t.Error("image/png reported as audio")
	}
}
