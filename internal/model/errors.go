package model

import "encoding/json"

// ErrorInfo holds structured failure information for an Artifact.
type ErrorInfo struct {
	Stage    string `json:"stage"`
	Message  string `json:"message"`
	FailedAt string `json:"failed_at"`
}

// ToJSON serializes ErrorInfo to a JSON string.
func (e ErrorInfo) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}
