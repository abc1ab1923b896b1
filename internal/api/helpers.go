package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/gguflens/internal/gguf"
	"github.com/samcharles93/gguflens/internal/modelstore"
)

func writeBadRequest(c *echo.Context, msg, param string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, param, "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "model_not_found")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writeFailure picks the status for an error coming out of the store or
// the decoder.
func writeFailure(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, modelstore.ErrNotFound):
		return writeNotFound(c, err.Error())
	case errors.Is(err, modelstore.ErrInvalidName), errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error(), "")
	case gguf.Kind(err) != nil:
		return writeError(c, http.StatusUnprocessableEntity, "decode_error", err.Error(), "", decodeErrorCode(err))
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := gojson.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, newInvalidRequest("invalid JSON body: " + err.Error())
	}
	return out, nil
}

func newInspectionID() string {
	return "insp_" + uuid.NewString()
}

// tensorQuery builds a selector from ?layer=&type=&match= style inputs.
// type accepts a comma separated list of ggml type names.
func tensorQuery(layer, types, match string) (gguf.TensorQuery, error) {
	q := gguf.TensorQuery{AnyLayer: true, Match: match}
	if layer = strings.TrimSpace(layer); layer != "" {
		n, err := strconv.Atoi(layer)
		if err != nil || n < -1 {
			return q, newInvalidRequest("layer must be an integer >= -1")
		}
		q.AnyLayer = false
		q.Layer = n
	}
	for name := range strings.SplitSeq(types, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tt, err := gguf.ParseTensorType(name)
		if err != nil {
			return q, newInvalidRequest(err.Error())
		}
		q.Types = append(q.Types, tt)
	}
	return q, nil
}

func tensorObject(t gguf.TensorInfo) TensorObject {
	obj := TensorObject{
		Name:     t.Name,
		Type:     t.Type.String(),
		Dims:     t.Dims,
		Elements: t.Elements(),
		Offset:   t.Offset,
		Size:     t.Size(),
	}
	if n := t.LayerNumber(); n >= 0 {
		obj.Layer = &n
	}
	return obj
}

func metadataEntries(kv gguf.Metadata) []MetadataEntry {
	keys := kv.Keys()
	out := make([]MetadataEntry, 0, len(keys))
	for _, k := range keys {
		v := kv[k]
		e := MetadataEntry{Key: k, Type: v.Type.String(), Value: v.String()}
		if arr, ok := v.Value.(gguf.ArrayValue); ok {
			e.ElemType = arr.ElemType.String()
			e.Len = arr.Len()
		}
		out = append(out, e)
	}
	return out
}
