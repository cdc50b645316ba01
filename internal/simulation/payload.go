package simulation

import (
	"encoding/json"
	"fmt"
)

// VoltageReading is one bus entry of a published snapshot.
type VoltageReading struct {
	Name string  `json:"name"`
	VmPU float64 `json:"vm_pu"`
}

// JoinReadings pairs bus names with voltage magnitudes by index.
//
// Returns:
//   - []VoltageReading: One reading per bus, in bus order
//   - error: ErrReadingMismatch if the slices differ in length
func JoinReadings(names []string, vmPU []float64) ([]VoltageReading, error) {
	if len(names) != len(vmPU) {
		return nil, fmt.Errorf("%w: %d buses, %d voltages", ErrReadingMismatch, len(names), len(vmPU))
	}
	readings := make([]VoltageReading, len(names))
	for i, name := range names {
		readings[i] = VoltageReading{Name: name, VmPU: vmPU[i]}
	}
	return readings, nil
}

// EncodePayload serialises readings as a JSON array. An empty slice
// encodes as [] rather than null.
func EncodePayload(readings []VoltageReading) ([]byte, error) {
	if readings == nil {
		readings = []VoltageReading{}
	}
	payload, err := json.Marshal(readings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return payload, nil
}
