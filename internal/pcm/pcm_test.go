package pcm

import (
	"errors"
	"testing"
)

func allCoresEnabled(core int) bool { return core >= 1 && core <= 8 }

func TestParseValid(t *testing.T) {
	m, err := Parse("0:1,2 1:3", 2, allCoresEnabled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Ports) != 2 {
		t.Fatalf("expected 2 ports, got %d", len(m.Ports))
	}
	if m.Ports[0].PortID != 0 || len(m.Ports[0].Cores) != 2 {
		t.Fatalf("unexpected port 0 config: %+v", m.Ports[0])
	}
	if m.Ports[1].PortID != 1 || len(m.Ports[1].Cores) != 1 {
		t.Fatalf("unexpected port 1 config: %+v", m.Ports[1])
	}
	if len(m.Cores) != 3 {
		t.Fatalf("expected 3 distinct cores, got %d", len(m.Cores))
	}
}

func TestParseRejectsCoreZero(t *testing.T) {
	_, err := Parse("0:0", 1, allCoresEnabled)
	if err == nil {
		t.Fatal("expected error for core 0")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %T", err)
	}
}

func TestParseRejectsDuplicatePort(t *testing.T) {
	_, err := Parse("0:1 0:2", 2, allCoresEnabled)
	if err == nil {
		t.Fatal("expected error for duplicate port")
	}
}

func TestParseRejectsDisabledCore(t *testing.T) {
	_, err := Parse("0:99", 1, allCoresEnabled)
	if err == nil {
		t.Fatal("expected error for disabled core")
	}
}

func TestParseRejectsPortOutOfRange(t *testing.T) {
	_, err := Parse("5:1", 1, allCoresEnabled)
	if err == nil {
		t.Fatal("expected error for out-of-range port id")
	}
}

func TestParseRejectsEmptyCoreList(t *testing.T) {
	_, err := Parse("0:", 1, allCoresEnabled)
	if err == nil {
		t.Fatal("expected error for empty core list")
	}
}

func TestParseRejectsTooManyCoresPerPort(t *testing.T) {
	_, err := Parse("0:1,2,3,4,5,6,7,8,1,2,3,4,5,6,7,8,1", 1, allCoresEnabled)
	if err == nil {
		t.Fatal("expected error for exceeding MAX_CORES_PER_PORT")
	}
}

func TestParseAllowsUpToMaxQueuesPerCore(t *testing.T) {
	// Core 1 is assigned exactly MAX_QUEUES_PER_CORE=4 queues.
	_, err := Parse("0:1 1:1 2:1 3:1", 4, allCoresEnabled)
	if err != nil {
		t.Fatalf("unexpected error at the limit: %v", err)
	}
}

func TestParseRejectsTooManyQueuesPerCore(t *testing.T) {
	// Core 1 is assigned a queue by 5 distinct ports, exceeding
	// MAX_QUEUES_PER_CORE=4.
	_, err := Parse("0:1 1:1 2:1 3:1 4:1", 5, allCoresEnabled)
	if err == nil {
		t.Fatal("expected error for exceeding MAX_QUEUES_PER_CORE")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %T", err)
	}
}

func TestParseEmptyMapping(t *testing.T) {
	if _, err := Parse("", 1, allCoresEnabled); err == nil {
		t.Fatal("expected error for empty mapping")
	}
}
