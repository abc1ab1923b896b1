package api

import (
	"errors"
	"strings"

	"github.com/samcharles93/gguflens/internal/gguf"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// decodeErrorCode maps a decode failure to a stable snake_case code.
func decodeErrorCode(err error) string {
	kind := gguf.Kind(err)
	if kind == nil {
		return ""
	}
	return strings.ReplaceAll(kind.Error(), " ", "_")
}
