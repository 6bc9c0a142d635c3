package synapse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gopkg.in/go-playground/validator.v9"
)

// ErrUnknownTask is returned by Decode for tasks without an envelope type.
var ErrUnknownTask = errors.New("unknown task")

// Header carries gateway bookkeeping. It is internal only and never projected.
type Header struct {
	QueryID    string
	Caller     string
	ReceivedAt time.Time
}

// Envelope is the fused request+response object for one query.
type Envelope interface {
	Header() Header
	Task() Task
	Engine() Engine
	Mock() bool
	// ErrorMessage returns the outgoing error message, if set.
	ErrorMessage() (string, bool)
	// Fail returns a copy carrying msg as error_message with every outgoing
	// success field cleared.
	Fail(msg string) Envelope
	// Project maps the outgoing fields onto the external response shape.
	Project() any
}

type decodeFunc func(h Header, body []byte) (Envelope, error)

var decoders = map[Task]decodeFunc{
	TaskTextToSpeechClone: decodeTextToSpeechClone,
	TaskAvailableTasks:    decodeAvailableTasks,
}

// Decode builds the envelope for task from an external JSON body. Fields
// absent from body keep their defaults; an empty body yields a fully
// defaulted envelope.
func Decode(task Task, h Header, body []byte) (Envelope, error) {
	fn, ok := decoders[task]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	return fn(h, body)
}

// unmarshalOver decodes body onto dst, which already holds defaults.
func unmarshalOver(body []byte, dst any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateFields runs struct tag validation and flattens the result into a
// single readable message.
func validateFields(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

func stringPtr(s string) *string {
	return &s
}
