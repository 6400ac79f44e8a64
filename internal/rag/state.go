package rag

import "errors"

var (
	ErrNoDocuments   = errors.New("no PDF text available to index")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrMissingKey    = errors.New("API key is not set")

	// ErrIndexIncompatible means the persisted index was embedded with a
	// different model or dimension than the configured provider produces.
	ErrIndexIncompatible = errors.New("index does not match the embedding provider")
)

// State is the readiness of a session's retrieval pipeline.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateMissingKey
	StateNoDocuments
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateMissingKey:
		return "missing_key"
	case StateNoDocuments:
		return "no_pdfs"
	default:
		return "init"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
