// Package queue defines message payloads exchanged over the message broker.
package queue

// SessionCompletedEvent is published when an operator checks a vehicle
// out. It carries enough detail for downstream consumers (billing export,
// audit log) without querying the primary database.
type SessionCompletedEvent struct {
	EventID         string `json:"event_id"`
	SessionID       uint64 `json:"session_id"`
	VehicleID       uint64 `json:"vehicle_id"`
	VehicleNumber   string `json:"vehicle_number"`
	Category        string `json:"category"`
	LevelNo         uint32 `json:"level_no"`
	SlotLabel       string `json:"slot_label"`
	EntryTime       string `json:"entry_time"`
	ExitTime        string `json:"exit_time"`
	DurationMinutes int64  `json:"duration_minutes"`
	ParkingCharge   uint32 `json:"parking_charge"`
	PaymentMethod   string `json:"payment_method"`
}
