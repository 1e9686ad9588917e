package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apierrors "github.com/copyleftdev/pigeon/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcRunParams addresses an existing run.
type rpcRunParams struct {
	ID     string `json:"id"`
	Count  int    `json:"count,omitempty"`
	Refine bool   `json:"refine,omitempty"`
}

// rpcParams returns the parameter object of a request. A positional array
// holding one object is accepted as well.
func rpcParams(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return trimmed
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
		return nil
	}
	return list[0]
}

func (s *Server) decodeRunParams(raw json.RawMessage) (rpcRunParams, error) {
	var p rpcRunParams
	if len(raw) == 0 {
		return p, fmt.Errorf("%w: params with a run id are required", apierrors.ErrBadRequest)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err)
	}
	if p.ID == "" {
		return p, fmt.Errorf("%w: id is required", apierrors.ErrBadRequest)
	}
	return p, nil
}

// dispatch runs one JSON-RPC method.
func (s *Server) dispatch(method string, raw json.RawMessage) (result interface{}, found bool, err error) {
	if method == "objectives.list" {
		return listObjectives(), true, nil
	}
	if method == "run.create" {
		run, err := s.createRun(raw)
		if err != nil {
			return nil, true, err
		}
		return run.View(), true, nil
	}

	switch method {
	case "run.step", "run.complete", "run.status", "run.history", "run.reset", "run.delete":
	default:
		return nil, false, nil
	}

	p, err := s.decodeRunParams(raw)
	if err != nil {
		return nil, true, err
	}

	if method == "run.delete" {
		if err := s.runs.Delete(p.ID); err != nil {
			return nil, true, err
		}
		return map[string]interface{}{"id": p.ID, "deleted": true}, true, nil
	}

	run, err := s.runs.Get(p.ID)
	if err != nil {
		return nil, true, err
	}

	switch method {
	case "run.step":
		count := p.Count
		if count == 0 {
			count = 1
		}
		if err := validCount(count); err != nil {
			return nil, true, err
		}
		view, err := run.Step(count)
		return view, true, err
	case "run.complete":
		view, err := run.Complete(p.Refine)
		return view, true, err
	case "run.status":
		return run.View(), true, nil
	case "run.history":
		return map[string]interface{}{"id": run.ID, "history": run.History()}, true, nil
	default: // run.reset
		view, err := run.Reset()
		return view, true, err
	}
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil, nil)
		return
	}

	var request rpcRequest
	if err = json.Unmarshal(body, &request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil, nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	result, found, err := s.dispatch(request.Method, rpcParams(request.Params))
	if !found {
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID, nil)
		return
	}
	if err != nil {
		s.countError(err)
		code := rpcServerError
		switch apierrors.KindOf(err) {
		case apierrors.KindInvalidConfiguration, apierrors.KindUnknownObjective, apierrors.KindBadRequest:
			code = rpcInvalidParams
		}
		s.respondWithError(w, code, err.Error(), request.ID, apierrors.NewResponse(err))
		return
	}

	// Send successful response
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, data interface{}) {
	s.logger.Warn("rpc error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	rpcErr := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		rpcErr["data"] = data
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   rpcErr,
		"id":      id,
	})
}
