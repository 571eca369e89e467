package dtos

import "encoding/json"

// Response is the envelope every REST endpoint answers with.
// Code 200 signals success regardless of transport status.
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
