// Package api serves GGUF inspection over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/docker/go-units"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/gguflens/internal/gguf"
	"github.com/samcharles93/gguflens/internal/logger"
	"github.com/samcharles93/gguflens/internal/modelstore"
)

// DefaultMaxUpload bounds the body of POST /v1/inspect. Only the header,
// metadata and descriptors are needed, so clients can send a file prefix.
const DefaultMaxUpload = 256 << 20

type Server struct {
	store     *modelstore.Store
	log       logger.Logger
	decode    []gguf.DecodeOption
	maxUpload int64
	newID     func() string
}

type Option func(*Server)

// WithDecodeOptions are passed to every decode the server performs.
func WithDecodeOptions(opts ...gguf.DecodeOption) Option {
	return func(s *Server) { s.decode = append(s.decode, opts...) }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

func WithMaxUpload(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// NewServer builds a server over store. A nil store disables the
// /v1/models routes; uploads still work.
func NewServer(store *modelstore.Store, opts ...Option) *Server {
	s := &Server{
		store:     store,
		log:       logger.Discard(),
		maxUpload: DefaultMaxUpload,
		newID:     newInspectionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	e.GET("/v1/models", s.handleListModels)
	e.GET("/v1/models/:name", s.handleGetModel)
	e.GET("/v1/models/:name/metadata", s.handleGetMetadata)
	e.GET("/v1/models/:name/tensors", s.handleGetTensors)

	e.POST("/v1/inspect", s.handleInspect)
	e.POST("/v1/search", s.handleSearch)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleListModels(c *echo.Context) error {
	if s.store == nil {
		return writeNotFound(c, "no models directory configured")
	}
	entries, err := s.store.List()
	if err != nil {
		return writeFailure(c, err)
	}
	data := make([]ModelObject, 0, len(entries))
	for _, e := range entries {
		data = append(data, ModelObject{
			ID:       e.Name,
			Object:   "model",
			Size:     e.Size,
			SizeText: units.HumanSizeWithPrecision(float64(e.Size), 3),
			Modified: e.ModTime,
		})
	}
	return c.JSON(http.StatusOK, ModelList{Object: "list", Data: data})
}

// resolve maps the :name route param onto a file in the store.
func (s *Server) resolve(name string) (string, error) {
	if s.store == nil {
		return "", modelstore.ErrNotFound
	}
	return s.store.Resolve(name)
}

func (s *Server) openModel(name string) (*gguf.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := gguf.Open(path, s.decodeOptions()...)
	if err != nil {
		s.log.Warn("decode failed", "model", name, "error", err)
		return nil, err
	}
	return f, nil
}

func (s *Server) decodeOptions() []gguf.DecodeOption {
	return append([]gguf.DecodeOption{gguf.WithLogger(s.log)}, s.decode...)
}

func (s *Server) handleGetModel(c *echo.Context) error {
	name := c.Param("name")
	if metadataOnly(c) {
		path, err := s.resolve(name)
		if err != nil {
			return writeFailure(c, err)
		}
		v, err := gguf.OpenMetadata(path, s.decodeOptions()...)
		if err != nil {
			return writeFailure(c, err)
		}
		return c.JSON(http.StatusOK, ModelSummary{ID: name, Object: "model.summary", Summary: gguf.SummarizeView(v)})
	}
	f, err := s.openModel(name)
	if err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(http.StatusOK, ModelSummary{ID: name, Object: "model.summary", Summary: gguf.Summarize(f)})
}

func (s *Server) handleGetMetadata(c *echo.Context) error {
	name := c.Param("name")
	path, err := s.resolve(name)
	if err != nil {
		return writeFailure(c, err)
	}
	v, err := gguf.OpenMetadata(path, s.decodeOptions()...)
	if err != nil {
		return writeFailure(c, err)
	}
	entries := metadataEntries(v.KV)
	return c.JSON(http.StatusOK, MetadataResponse{
		ID:       name,
		Object:   "model.metadata",
		Count:    len(entries),
		Metadata: entries,
	})
}

func (s *Server) handleGetTensors(c *echo.Context) error {
	q, err := tensorQuery(c.QueryParam("layer"), c.QueryParam("type"), c.QueryParam("match"))
	if err != nil {
		return writeFailure(c, err)
	}
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return writeBadRequest(c, err.Error(), "limit")
	}
	f, err := s.openModel(c.Param("name"))
	if err != nil {
		return writeFailure(c, err)
	}
	matched, err := f.Query(q)
	if err != nil {
		return writeBadRequest(c, err.Error(), "match")
	}
	out := TensorList{ID: c.Param("name"), Object: "list", Total: len(matched)}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	out.Tensors = make([]TensorObject, len(matched))
	for i, t := range matched {
		out.Tensors[i] = tensorObject(t)
	}
	out.Count = len(out.Tensors)
	return c.JSON(http.StatusOK, out)
}

// handleInspect decodes a GGUF file streamed in the request body.
func (s *Server) handleInspect(c *echo.Context) error {
	req := c.Request()
	id := s.newID()
	body := http.MaxBytesReader(c.Response(), req.Body, s.maxUpload)
	opts := s.decodeOptions()
	if req.ContentLength > 0 && req.ContentLength <= s.maxUpload {
		opts = append(opts, gguf.WithSize(req.ContentLength))
	}

	resp := InspectResponse{ID: id, Object: "inspection"}
	if metadataOnly(c) {
		v, err := gguf.DecodeHeaderAndMetadataContext(req.Context(), body, opts...)
		if err != nil {
			return s.inspectFailed(c, id, err)
		}
		resp.Summary = gguf.SummarizeView(v)
		resp.Metadata = metadataEntries(v.KV)
	} else {
		f, err := gguf.DecodeContext(req.Context(), body, opts...)
		if err != nil {
			return s.inspectFailed(c, id, err)
		}
		resp.Summary = gguf.Summarize(f)
		resp.Metadata = metadataEntries(f.KV)
	}
	s.log.Info("inspected upload",
		"id", id,
		"architecture", resp.Summary.Architecture,
		"tensors", resp.Summary.TensorCount,
		"metadata_only", resp.Summary.MetadataOnly,
	)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) inspectFailed(c *echo.Context, id string, err error) error {
	s.log.Warn("inspection failed", "id", id, "error", err)
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error",
			"upload exceeds "+units.HumanSize(float64(tooBig.Limit)), "", "")
	}
	return writeFailure(c, err)
}

// handleSearch runs one tensor query across several models. A model that
// fails to decode is reported in Errors and does not fail the request.
func (s *Server) handleSearch(c *echo.Context) error {
	if s.store == nil {
		return writeNotFound(c, "no models directory configured")
	}
	req, err := decodeJSON[SearchRequest](c.Request().Body)
	if err != nil {
		return writeFailure(c, err)
	}
	q := gguf.TensorQuery{AnyLayer: req.Layer == nil, Match: req.Match}
	if req.Layer != nil {
		q.Layer = *req.Layer
	}
	if req.Type != "" {
		parsed, err := tensorQuery("", req.Type, "")
		if err != nil {
			return writeFailure(c, err)
		}
		q.Types = parsed.Types
	}

	models := req.Models
	if len(models) == 0 {
		entries, err := s.store.List()
		if err != nil {
			return writeFailure(c, err)
		}
		for _, e := range entries {
			models = append(models, e.Name)
		}
	}

	resp := SearchResponse{Object: "list", Hits: []SearchHit{}}
search:
	for _, name := range models {
		f, err := s.openModel(name)
		if err != nil {
			resp.Errors = append(resp.Errors, name+": "+err.Error())
			continue
		}
		matched, err := f.Query(q)
		if err != nil {
			return writeBadRequest(c, err.Error(), "match")
		}
		for _, t := range matched {
			if req.Limit > 0 && len(resp.Hits) == req.Limit {
				break search
			}
			resp.Hits = append(resp.Hits, SearchHit{Model: name, Tensor: tensorObject(t)})
		}
	}
	resp.Count = len(resp.Hits)
	return c.JSON(http.StatusOK, resp)
}

func metadataOnly(c *echo.Context) bool {
	ok, _ := strconv.ParseBool(c.QueryParam("metadata_only"))
	return ok
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}
