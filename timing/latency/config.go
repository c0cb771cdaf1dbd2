package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds latency values for the SM's execution resources.
type TimingConfig struct {
	// ALULatency is the integer pipeline depth in cycles. Default: 2.
	ALULatency uint64 `json:"alu_latency"`

	// FPULatency is the floating-point pipeline depth. Default: 4.
	FPULatency uint64 `json:"fpu_latency"`

	// FDivLatency is the (non-pipelined in hardware, fixed here)
	// floating-point divide latency. Default: 16.
	FDivLatency uint64 `json:"fdiv_latency"`

	// SFULatency is the special-function pipeline depth. Default: 8.
	SFULatency uint64 `json:"sfu_latency"`

	// BranchLatency is the control-instruction resolve latency.
	// Default: 1.
	BranchLatency uint64 `json:"branch_latency"`

	// SharedLatency is the conflict-free shared-memory access latency.
	// Bank conflicts add one replay cycle per serialized group.
	// Default: 2.
	SharedLatency uint64 `json:"shared_latency"`

	// MemoryLatency is the global-memory round-trip latency.
	// Default: 100.
	MemoryLatency uint64 `json:"memory_latency"`

	// L1HitLatency is the optional L1 hit latency for global loads.
	// Default: 4.
	L1HitLatency uint64 `json:"l1_hit_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the model's defaults.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:    2,
		FPULatency:    4,
		FDivLatency:   16,
		SFULatency:    8,
		BranchLatency: 1,
		SharedLatency: 2,
		MemoryLatency: 100,
		L1HitLatency:  4,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are usable.
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.FPULatency == 0 {
		return fmt.Errorf("fpu_latency must be > 0")
	}
	if c.SFULatency == 0 {
		return fmt.Errorf("sfu_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.SharedLatency == 0 {
		return fmt.Errorf("shared_latency must be > 0")
	}
	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
