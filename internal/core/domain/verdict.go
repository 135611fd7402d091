package domain

import (
	"encoding/json"
	"fmt"
)

// Action tags recognized in a verdict. Tags outside this set are treated
// as pass-like no-ops so newer engines remain compatible with older
// workers.
const (
	ActionPass           = "pass"
	ActionCustomResponse = "custom_response"
)

// CustomResponse is the response substituted for the normal upstream flow
// when the engine blocks, challenges, or redirects a request.
type CustomResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// Verdict is the inspection engine's decision for one request.
// RequestMap is always present on a well-formed verdict; Response is
// present iff Action is "custom_response".
type Verdict struct {
	RequestMap *RequestMap     `json:"request_map"`
	Action     string          `json:"action"`
	Response   *CustomResponse `json:"response,omitempty"`
}

// Outcome is the enforced result of one request's inspection: the action
// tag that was honored and, when a custom response was applied, its
// status code. Fail-open paths report a pass outcome.
type Outcome struct {
	Action string
	Status int
}

// PassOutcome is the outcome of a request the engine did not alter,
// including every fail-open path.
func PassOutcome() Outcome {
	return Outcome{Action: ActionPass}
}

// Decision is the interpreted form of a verdict's action tag.
type Decision struct {
	kind     string
	response *CustomResponse
}

// IsCustomResponse reports whether the decision carries a response to
// apply, returning it when so.
func (d Decision) IsCustomResponse() (*CustomResponse, bool) {
	if d.kind == ActionCustomResponse {
		return d.response, true
	}
	return nil, false
}

// Kind returns the raw action tag the decision was built from.
func (d Decision) Kind() string { return d.kind }

// MalformedVerdictError reports an engine contract violation: a verdict
// document that parsed but is missing required fields. Callers treat it
// like an engine failure and fail open.
type MalformedVerdictError struct {
	Reason string
}

func (e *MalformedVerdictError) Error() string {
	return fmt.Sprintf("malformed verdict: %s", e.Reason)
}

// ParseVerdict decodes a verdict document and validates the engine
// contract. Unknown action tags are accepted and interpreted as pass.
func ParseVerdict(doc []byte) (*Verdict, Decision, error) {
	var v Verdict
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, Decision{}, fmt.Errorf("decode verdict: %w", err)
	}
	if v.RequestMap == nil {
		return nil, Decision{}, &MalformedVerdictError{Reason: "missing request_map"}
	}
	if v.Action == ActionCustomResponse && v.Response == nil {
		return nil, Decision{}, &MalformedVerdictError{Reason: "custom_response without response"}
	}
	d := Decision{kind: v.Action}
	if v.Action == ActionCustomResponse {
		d.response = v.Response
	}
	return &v, d, nil
}
