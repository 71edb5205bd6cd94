package codec

import (
	"errors"
	"fmt"
)

var errMissingDescription = errors.New("packet has no usable session description")

// Decode stages, in pipeline order.
const (
	StageUnescape   = "unescape"
	StageBase64     = "base64"
	StageInflate    = "inflate"
	StageJSON       = "json"
	StageValidation = "validate"
)

// DecodeError reports malformed negotiation text. It never implies any change
// to session state.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid negotiation code (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(stage string, err error) error {
	return &DecodeError{Stage: stage, Err: err}
}
