package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// IntakeResult reports what happened to a posted batch.
type IntakeResult struct {
	Accepted int              `json:"accepted"`
	Rejected int              `json:"rejected"`
	Errors   []IntakeRejected `json:"errors,omitempty"`
}

// IntakeRejected describes one rejected item of a batch.
type IntakeRejected struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// handlePostRaddecs accepts one raddec or an array of raddecs.
func (s *Server) handlePostRaddecs(w http.ResponseWriter, r *http.Request) {
	handleBatch(w, r, s.intake.HandleRaddec)
}

// handlePostDynambs accepts one dynamb or an array of dynambs.
func (s *Server) handlePostDynambs(w http.ResponseWriter, r *http.Request) {
	handleBatch(w, r, s.intake.HandleDynamb)
}

// handlePostStatids accepts one statid or an array of statids.
func (s *Server) handlePostStatids(w http.ResponseWriter, r *http.Request) {
	handleBatch(w, r, s.intake.HandleStatid)
}

// handleBatch decodes the body, hands every item to handle and replies 202
// when at least one item was accepted, 422 when none were.
func handleBatch[T any](w http.ResponseWriter, r *http.Request, handle func(*T) error) {
	items, err := decodeOneOrMany[T](r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "no items in request body")
		return
	}

	var result IntakeResult
	for i, item := range items {
		if item == nil {
			result.Rejected++
			result.Errors = append(result.Errors, IntakeRejected{Index: i, Error: "null item"})
			continue
		}
		if err := handle(item); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, IntakeRejected{Index: i, Error: err.Error()})
			continue
		}
		result.Accepted++
	}

	status := http.StatusAccepted
	if result.Accepted == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// decodeOneOrMany decodes either a single JSON object or an array of them.
func decodeOneOrMany[T any](body io.Reader) ([]*T, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	if data[0] == '[' {
		var items []*T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	item := new(T)
	if err := json.Unmarshal(data, item); err != nil {
		return nil, err
	}
	return []*T{item}, nil
}
