package server

import (
	"encoding/json"
	"fmt"

	"github.com/hackeurope/nodehoist/internal/aggregate"
	"github.com/hackeurope/nodehoist/internal/analysis"
	"github.com/hackeurope/nodehoist/pkg/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client -> Server
	TypeAnalyze MessageType = "analyze" // Client sends package.json (+ optional lockfile) to hoist
	TypePing    MessageType = "ping"    // Keep-alive

	// Server -> Client
	TypeDAG         MessageType = "dag"         // Parsed npm dependency graph
	TypeProgress    MessageType = "progress"    // Progress updates
	TypeLog         MessageType = "log"         // Log messages for terminal
	TypeHoisted     MessageType = "hoisted"     // Hoisted output tree
	TypeDiagnostics MessageType = "diagnostics" // Aggregated hoist diagnostics report
	TypeExplanation MessageType = "explanation" // AI explanation of the diagnostics, if configured
	TypeComplete    MessageType = "complete"    // Run complete
	TypeError       MessageType = "error"       // Error message
)

// Message is the base WebSocket message envelope. Messages produced for a
// hoist run carry that run's RunID, so a client can tell apart the runs it
// starts one after another over the same connection.
type Message struct {
	Type    MessageType     `json:"type"`
	RunID   string          `json:"run_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// AnalyzePayload sent by client to start a hoist run
type AnalyzePayload struct {
	PackageJSON string `json:"package_json"`       // Raw package.json content
	Lockfile    string `json:"lockfile,omitempty"` // Raw package-lock.json content; generated via npm when empty
}

// DAGPayload contains the parsed dependency graph for visualization
type DAGPayload struct {
	RootPackage *models.Package       `json:"root_package"`
	Nodes       []*models.PackageNode `json:"nodes"`
	EdgeCount   int                   `json:"edge_count"`
}

// ProgressPayload for progress bar updates
type ProgressPayload struct {
	Percent int    `json:"percent"` // 0-100
	Stage   string `json:"stage"`   // "dag", "hoist", "diagnostics", "explain", "complete"
	Message string `json:"message"` // Human-readable status
}

// LogPayload for terminal output
type LogPayload struct {
	Message string `json:"message"`         // Log message
	Level   string `json:"level,omitempty"` // "info", "success", "warning", "error"
}

// HoistedPayload contains the hoisted output tree
type HoistedPayload struct {
	Tree *models.OutputNode `json:"tree"`
}

// DiagnosticsPayload contains the aggregated report over the run's trace
type DiagnosticsPayload struct {
	Report *aggregate.Report `json:"report"`
}

// ExplanationPayload contains the AI explainer's output for the diagnostics
// report or for a self-check failure, sent only when an API key was
// configured. For a report with no diagnostic flags it carries a fixed
// "info" explanation instead of a model-generated one.
type ExplanationPayload struct {
	Explanation *analysis.FailureExplanation `json:"explanation"`
}

// CompletePayload sent when a run is done
type CompletePayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Helper functions to create messages

func NewDAGMessage(runID string, root *models.Package, nodes []*models.PackageNode, edgeCount int) Message {
	payload := DAGPayload{
		RootPackage: root,
		Nodes:       nodes,
		EdgeCount:   edgeCount,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeDAG, RunID: runID, Payload: payloadBytes}
}

func NewProgressMessage(runID string, percent int, stage, message string) Message {
	payload := ProgressPayload{
		Percent: percent,
		Stage:   stage,
		Message: message,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeProgress, RunID: runID, Payload: payloadBytes}
}

func NewLogMessage(runID, message, level string) Message {
	payload := LogPayload{
		Message: message,
		Level:   level,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeLog, RunID: runID, Payload: payloadBytes}
}

func NewHoistedMessage(runID string, tree *models.OutputNode) Message {
	payload := HoistedPayload{Tree: tree}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeHoisted, RunID: runID, Payload: payloadBytes}
}

func NewDiagnosticsMessage(runID string, report *aggregate.Report) Message {
	payload := DiagnosticsPayload{Report: report}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeDiagnostics, RunID: runID, Payload: payloadBytes}
}

func NewExplanationMessage(runID string, explanation *analysis.FailureExplanation) Message {
	payload := ExplanationPayload{Explanation: explanation}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeExplanation, RunID: runID, Payload: payloadBytes}
}

func NewCompleteMessage(runID string, success bool, message string) Message {
	payload := CompletePayload{
		Success: success,
		Message: message,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeComplete, RunID: runID, Payload: payloadBytes}
}

func NewErrorMessage(runID, message string, err error) Message {
	errMsg := message
	if err != nil {
		errMsg = fmt.Sprintf("%s: %v", message, err)
	}
	payload := ErrorPayload{Message: errMsg}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeError, RunID: runID, Payload: payloadBytes}
}

// ParseAnalyzePayload extracts the analyze payload from a message
func ParseAnalyzePayload(msg Message) (*AnalyzePayload, error) {
	var payload AnalyzePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse analyze payload: %w", err)
	}
	return &payload, nil
}
