package domain

import "time"

// Outcome values recorded in the operation log.
const (
	OutcomeSuccess = "success"
)

// OperationLogEntry is an append-only record of a mutating command.
type OperationLogEntry struct {
	ID           string       `json:"id"`
	Timestamp    time.Time    `json:"timestamp"`
	FederationID FederationID `json:"federation_id"`
	Module       string       `json:"module"`
	Operation    string       `json:"operation"`
	Outcome      string       `json:"outcome"`
	Result       any          `json:"result,omitempty"`
}
