package wire

import (
	json "github.com/goccy/go-json"
)

// SystemStatus is the trading state reported on the status channel.
type SystemStatus string

const (
	SystemOnline      SystemStatus = "online"
	SystemCancelOnly  SystemStatus = "cancel_only"
	SystemMaintenance SystemStatus = "maintenance"
	SystemPostOnly    SystemStatus = "post_only"
	SystemLimitOnly   SystemStatus = "limit_only"
	SystemReduceOnly  SystemStatus = "reduce_only"
)

// Status is the single record delivered on the status channel after connect
// and whenever the system state changes.
type Status struct {
	APIVersion string `json:"api_version"`
	// ConnectionID exceeds the int64 range on the live exchange.
	ConnectionID json.Number  `json:"connection_id"`
	System       SystemStatus `json:"system"`
	Version      string       `json:"version"`
}
