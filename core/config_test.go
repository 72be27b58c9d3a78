package core

import "testing"

// TestConfig_Validate_EnforcesFiberToWorkerRatio verifies §6's
// FIBER_COUNT >= WORKER_COUNT*2 requirement is enforced.
func TestConfig_Validate_EnforcesFiberToWorkerRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 8
	cfg.FiberCount = 4

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted FiberCount < WorkerCount*2")
	}
}

// TestConfig_Validate_RequiresPowerOfTwoFiberCount verifies §4.A's
// power-of-two pool capacity requirement.
func TestConfig_Validate_RequiresPowerOfTwoFiberCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 2
	cfg.FiberCount = 10

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted a non-power-of-two FiberCount")
	}
}

// TestConfig_Validate_AcceptsDefaults verifies the shipped default
// configuration is itself valid.
func TestConfig_Validate_AcceptsDefaults(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig() failed validation: %v", err)
	}
}
