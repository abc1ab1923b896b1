package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/gguflens/internal/gguf/gguftest"
	"github.com/samcharles93/gguflens/internal/modelstore"
)

func newTestEcho(t *testing.T, opts ...Option) *echo.Echo {
	t.Helper()
	dir := t.TempDir()
	gguftest.Llama().WriteFile(t, dir, "llama.gguf")
	if err := os.WriteFile(filepath.Join(dir, "broken.gguf"), []byte("not a gguf file!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := modelstore.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(store, opts...)
	server.newID = func() string { return "insp_test" }
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, e *echo.Echo, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "application/octet-stream")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := gojson.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error ResponseError `json:"error"`
}

func TestHealth(t *testing.T) {
	t.Parallel()
	rec := doJSON(t, newTestEcho(t), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestListModels(t *testing.T) {
	t.Parallel()
	rec := doJSON(t, newTestEcho(t), http.MethodGet, "/v1/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	list := decodeBody[ModelList](t, rec)
	var ids []string
	for _, m := range list.Data {
		ids = append(ids, m.ID)
		if m.Object != "model" || m.Size <= 0 || m.SizeText == "" {
			t.Errorf("unexpected entry %+v", m)
		}
	}
	if diff := cmp.Diff([]string{"broken", "llama"}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
}

func TestListModelsWithoutStore(t *testing.T) {
	t.Parallel()
	e := echo.New()
	NewServer(nil).Register(e)
	rec := doJSON(t, e, http.MethodGet, "/v1/models", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestGetModelSummary(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)

	rec := doJSON(t, e, http.MethodGet, "/v1/models/llama", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	got := decodeBody[ModelSummary](t, rec)
	s := got.Summary
	if got.ID != "llama" || s.Architecture != "llama" || s.Name != "tiny-llama" || s.FileType != "Q4_K_M" {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.TensorCount != 5 || s.Layers != 2 || s.MetadataOnly || s.Parameters == 0 {
		t.Fatalf("unexpected tensor stats %+v", s)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/models/llama?metadata_only=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metadata_only status: got %d body=%s", rec.Code, rec.Body.String())
	}
	s = decodeBody[ModelSummary](t, rec).Summary
	if !s.MetadataOnly || s.TensorCount != 5 || s.Parameters != 0 {
		t.Fatalf("unexpected metadata-only summary %+v", s)
	}
}

func TestGetModelErrors(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/v1/models/missing", http.StatusNotFound, "model_not_found"},
		{"/v1/models/broken", http.StatusUnprocessableEntity, "malformed_header"},
		{"/v1/models/broken/metadata", http.StatusUnprocessableEntity, "malformed_header"},
		{"/v1/models/llama/tensors?layer=x", http.StatusBadRequest, ""},
		{"/v1/models/llama/tensors?type=q9_z", http.StatusBadRequest, ""},
		{"/v1/models/llama/tensors?match=(", http.StatusBadRequest, ""},
		{"/v1/models/llama/tensors?limit=-1", http.StatusBadRequest, ""},
	}
	for _, tc := range tests {
		rec := doJSON(t, e, http.MethodGet, tc.path, "")
		if rec.Code != tc.status {
			t.Errorf("%s: status %d, want %d (body=%s)", tc.path, rec.Code, tc.status, rec.Body.String())
			continue
		}
		if got := decodeBody[errorBody](t, rec).Error; got.Code != tc.code || got.Message == "" {
			t.Errorf("%s: error %+v, want code %q", tc.path, got, tc.code)
		}
	}
}

func TestGetMetadata(t *testing.T) {
	t.Parallel()
	rec := doJSON(t, newTestEcho(t), http.MethodGet, "/v1/models/llama/metadata", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	got := decodeBody[MetadataResponse](t, rec)
	if got.Count != 7 || len(got.Metadata) != 7 {
		t.Fatalf("count = %d", got.Count)
	}
	if got.Metadata[0].Key != "general.architecture" {
		t.Errorf("keys not sorted: first is %q", got.Metadata[0].Key)
	}
	for _, m := range got.Metadata {
		if m.Key != "tokenizer.ggml.tokens" {
			continue
		}
		want := MetadataEntry{Key: m.Key, Type: "array", ElemType: "string", Len: 3, Value: "[<unk>, <s>, </s>]"}
		if diff := cmp.Diff(want, m); diff != "" {
			t.Errorf("tokens entry (-want +got):\n%s", diff)
		}
		return
	}
	t.Fatal("tokens entry missing")
}

func TestGetTensors(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)

	tests := []struct {
		query string
		total int
		want  []string
	}{
		{"", 5, []string{"token_embd.weight", "blk.0.attn_q.weight", "blk.0.attn_q.bias", "blk.1.attn_q.weight", "output_norm.weight"}},
		{"?layer=0", 2, []string{"blk.0.attn_q.weight", "blk.0.attn_q.bias"}},
		{"?layer=-1", 2, []string{"token_embd.weight", "output_norm.weight"}},
		{"?type=q6_k", 1, []string{"blk.1.attn_q.weight"}},
		{"?type=Q4_K,F32&layer=0", 2, []string{"blk.0.attn_q.weight", "blk.0.attn_q.bias"}},
		{"?match=blk%5C..%2A&limit=1", 3, []string{"blk.0.attn_q.weight"}},
	}
	for _, tc := range tests {
		rec := doJSON(t, e, http.MethodGet, "/v1/models/llama/tensors"+tc.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: status %d body=%s", tc.query, rec.Code, rec.Body.String())
		}
		got := decodeBody[TensorList](t, rec)
		var names []string
		for _, ti := range got.Tensors {
			names = append(names, ti.Name)
		}
		if got.Total != tc.total || got.Count != len(tc.want) {
			t.Errorf("%q: total=%d count=%d", tc.query, got.Total, got.Count)
		}
		if diff := cmp.Diff(tc.want, names); diff != "" {
			t.Errorf("%q (-want +got):\n%s", tc.query, diff)
		}
	}
}

func TestTensorObjectLayer(t *testing.T) {
	t.Parallel()
	rec := doJSON(t, newTestEcho(t), http.MethodGet, "/v1/models/llama/tensors?layer=1", "")
	got := decodeBody[TensorList](t, rec)
	if len(got.Tensors) != 1 {
		t.Fatalf("got %d tensors", len(got.Tensors))
	}
	ti := got.Tensors[0]
	if ti.Layer == nil || *ti.Layer != 1 || ti.Type != "Q6_K" || ti.Elements != 256*256 {
		t.Fatalf("unexpected tensor %+v", ti)
	}
	if diff := cmp.Diff([]uint64{256, 256}, ti.Dims); diff != "" {
		t.Errorf("dims (-want +got):\n%s", diff)
	}
}

func TestInspectUpload(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	body := gguftest.Llama().Bytes()

	rec := doUpload(t, e, "/v1/inspect", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	got := decodeBody[InspectResponse](t, rec)
	if got.ID != "insp_test" || got.Object != "inspection" {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if got.Summary.Architecture != "llama" || got.Summary.TensorCount != 5 || got.Summary.DataOffset != uint64(len(body)) {
		t.Fatalf("unexpected summary %+v", got.Summary)
	}
	if len(got.Metadata) != 7 {
		t.Fatalf("metadata entries = %d", len(got.Metadata))
	}

	rec = doUpload(t, e, "/v1/inspect?metadata_only=1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("metadata_only status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if s := decodeBody[InspectResponse](t, rec).Summary; !s.MetadataOnly || s.TensorCount != 5 {
		t.Fatalf("unexpected metadata-only summary %+v", s)
	}
}

func TestInspectRejectsBadUploads(t *testing.T) {
	t.Parallel()
	body := gguftest.Llama().Bytes()

	tests := []struct {
		name   string
		opts   []Option
		body   []byte
		status int
		code   string
	}{
		{"truncated", nil, body[:20], http.StatusUnprocessableEntity, "unexpected_end_of_stream"},
		{"bad magic", nil, []byte("GGML\x03\x00\x00\x00"), http.StatusUnprocessableEntity, "malformed_header"},
		{"too large", []Option{WithMaxUpload(16)}, body, http.StatusRequestEntityTooLarge, ""},
	}
	for _, tc := range tests {
		rec := doUpload(t, newTestEcho(t, tc.opts...), "/v1/inspect", tc.body)
		if rec.Code != tc.status {
			t.Errorf("%s: status %d, want %d (body=%s)", tc.name, rec.Code, tc.status, rec.Body.String())
			continue
		}
		if got := decodeBody[errorBody](t, rec).Error; got.Code != tc.code {
			t.Errorf("%s: code %q, want %q", tc.name, got.Code, tc.code)
		}
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/search", `{"match":"blk\\..*\\.weight"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	got := decodeBody[SearchResponse](t, rec)
	var hits []string
	for _, h := range got.Hits {
		hits = append(hits, h.Model+"/"+h.Tensor.Name)
	}
	if diff := cmp.Diff([]string{"llama/blk.0.attn_q.weight", "llama/blk.1.attn_q.weight"}, hits); diff != "" {
		t.Errorf("hits (-want +got):\n%s", diff)
	}
	if len(got.Errors) != 1 || !strings.HasPrefix(got.Errors[0], "broken: ") {
		t.Errorf("errors = %v", got.Errors)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/search", `{"models":["llama"],"type":"f32","limit":1}`)
	got = decodeBody[SearchResponse](t, rec)
	if got.Count != 1 || got.Hits[0].Tensor.Name != "blk.0.attn_q.bias" || len(got.Errors) != 0 {
		t.Errorf("unexpected response %+v", got)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/search", `{"layer":0}`)
	if got = decodeBody[SearchResponse](t, rec); got.Count != 2 {
		t.Errorf("layer 0 hits = %d", got.Count)
	}
}

func TestSearchRejectsBadRequests(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	for _, body := range []string{
		`{"unknown":true}`,
		`not json`,
		`{"type":"q9"}`,
		`{"models":["llama"],"match":"("}`,
	} {
		rec := doJSON(t, e, http.MethodPost, "/v1/search", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d body=%s", body, rec.Code, rec.Body.String())
		}
	}
}
