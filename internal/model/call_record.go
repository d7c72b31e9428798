package model

import "encoding/json"

// CallRecord is the persisted outcome of one function call.
type CallRecord struct {
	Network       string          `json:"network"`
	Function      string          `json:"function"`
	TypeArgs      []string        `json:"type_args"`
	Args          []string        `json:"args"`
	LedgerVersion uint64          `json:"ledger_version"`
	ReturnValues  json.RawMessage `json:"return_values,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExecutedAt    string          `json:"executed_at"`
}
