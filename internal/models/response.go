package models

import "time"

// AgentResponse is one specialist's contribution to a request.
type AgentResponse struct {
	Agent      string    `json:"agent"`
	Specialty  Specialty `json:"specialty"`
	Text       string    `json:"response"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`

	// Degraded is set when the consultation failed and Text is a placeholder.
	Degraded bool `json:"degraded"`
}

// AgentDiagnostic summarizes one agent's participation.
type AgentDiagnostic struct {
	Agent      string    `json:"agent"`
	Specialty  Specialty `json:"specialty"`
	Confidence float64   `json:"confidence"`
	Degraded   bool      `json:"degraded"`
}

// Diagnostics describes how a response was produced.
type Diagnostics struct {
	RequestID       string            `json:"request_id"`
	AgentsConsulted int               `json:"agents_consulted"`
	SpecialistsUsed int               `json:"specialists_used"`
	Agents          []AgentDiagnostic `json:"agent_contributions"`
	Sentiment       Label             `json:"sentiment"`
	Emotion         Label             `json:"emotion"`
	MemoryHits      int               `json:"memories_accessed"`
	Degraded        []string          `json:"degraded,omitempty"`
	Stage           Stage             `json:"stage"`
	DurationMs      int64             `json:"duration_ms"`
}

// ChatResult is the outcome of handling one chat message.
type ChatResult struct {
	Response    string      `json:"response"`
	Diagnostics Diagnostics `json:"diagnostics"`
}
