package batch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aristath/sentinel-dashboard/internal/domain"
)

// Result is the outcome of one sub-request: either Data, or Error with Status.
// Status 0 marks a failure that never reached the server.
type Result struct {
	Data   json.RawMessage
	Error  string
	Status int
}

// Results maps sub-request id to its outcome.
type Results map[string]Result

// wireResult is the JSON shape {data} | {error, status}.
type wireResult struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Status int             `json:"status,omitempty"`
}

// OK reports whether the sub-request succeeded.
func (r Result) OK() bool {
	return r.Error == ""
}

// Err converts a failed result into an error; nil for a success.
// A 401 matches domain.ErrAuthExpired through errors.Is.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	if r.Status == 0 {
		return &domain.TransportError{Op: "batch", Path: "item", Err: errors.New(r.Error)}
	}
	return &domain.StatusError{Status: r.Status, Message: r.Error}
}

// Decode unmarshals Data into v. A failed result returns Err().
func (r Result) Decode(v interface{}) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("batch result has no data")
	}
	return json.Unmarshal(r.Data, v)
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.OK() {
		data := r.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		return json.Marshal(struct {
			Data json.RawMessage `json:"data"`
		}{data})
	}
	return json.Marshal(struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{r.Error, r.Status})
}

func (r *Result) UnmarshalJSON(raw []byte) error {
	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	if w.Error == "" && w.Data == nil {
		return errors.New("batch result has neither data nor error")
	}
	*r = Result{Data: w.Data, Error: w.Error, Status: w.Status}
	return nil
}

// Success builds an OK result.
func Success(data json.RawMessage) Result {
	return Result{Data: data}
}

// Failure builds a failed result.
func Failure(status int, message string) Result {
	return Result{Error: message, Status: status}
}

// failureFrom classifies err the way the batch endpoint reports item failures.
func failureFrom(err error) Result {
	var status *domain.StatusError
	if errors.As(err, &status) {
		msg := status.Message
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", status.Status)
		}
		return Failure(status.Status, msg)
	}
	return Failure(0, err.Error())
}
