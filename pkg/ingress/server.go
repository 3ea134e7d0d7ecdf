// Package ingress accepts actions over HTTP and hands them to a mediator.
// It is the outer surface of a dispatch pipeline: POST an action, get the
// winning actor's output back.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/valyala/fasthttp"

	"github.com/mandel59/comunica/pkg/core"
	"github.com/mandel59/comunica/pkg/mediator"
)

// Dispatch is the function an ingress server forwards decoded actions to;
// typically a Mediator's Mediate method (or a traced wrapper of it).
type Dispatch[A, O any] func(ctx context.Context, action A) (O, error)

// Server is a fasthttp server around one dispatch function.
type Server[A, O any] struct {
	name     string
	dispatch Dispatch[A, O]
	logger   core.Logger
	srv      *fasthttp.Server
}

// New creates an ingress server. Actions are decoded from JSON request
// bodies into A.
func New[A, O any](name string, dispatch Dispatch[A, O]) *Server[A, O] {
	s := &Server[A, O]{
		name:     name,
		dispatch: dispatch,
		logger:   core.NopLogger(),
	}
	s.srv = &fasthttp.Server{
		Name:    name,
		Handler: s.Handle,
	}
	return s
}

// SetLogger replaces the server logger.
func (s *Server[A, O]) SetLogger(l core.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Handle is the fasthttp request handler; exported so callers can mount it
// under their own router or serve it on a custom listener.
func (s *Server[A, O]) Handle(ctx *fasthttp.RequestCtx) {
	switch {
	case string(ctx.Path()) == "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case string(ctx.Path()) == "/dispatch" && ctx.IsPost():
		s.handleDispatch(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type resultResponse struct {
	Result        any    `json:"result"`
	CorrelationID string `json:"correlation_id"`
}

func (s *Server[A, O]) handleDispatch(ctx *fasthttp.RequestCtx) {
	var action A
	if err := json.Unmarshal(ctx.PostBody(), &action); err != nil {
		s.writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: "invalid action: " + err.Error()})
		return
	}

	reqCtx := core.EnsureCorrelationID(context.Background())
	cid := core.CorrelationID(reqCtx)

	out, err := s.dispatch(reqCtx, action)
	if err != nil {
		if errors.Is(err, mediator.ErrNoCandidate) {
			s.logger.Warnf("ingress %s: %s: %v", s.name, cid, err)
			s.writeJSON(ctx, fasthttp.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Errorf("ingress %s: %s: dispatch failed: %v", s.name, cid, err)
		s.writeJSON(ctx, fasthttp.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.writeJSON(ctx, fasthttp.StatusOK, resultResponse{Result: out, CorrelationID: cid})
}

func (s *Server[A, O]) writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Errorf("ingress %s: encode response: %v", s.name, err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server[A, O]) ListenAndServe(addr string) error {
	s.logger.Infof("ingress %s: listening on %s", s.name, addr)
	return s.srv.ListenAndServe(addr)
}

// Serve serves on an existing listener; used by tests with in-memory
// listeners.
func (s *Server[A, O]) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Shutdown gracefully shuts the server down.
func (s *Server[A, O]) Shutdown() error {
	return s.srv.Shutdown()
}
