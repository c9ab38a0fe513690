package framebuffer

import (
	"fmt"
	"os"
	"testing"
)

func tempSegmentName(t *testing.T) string {
	t.Helper()
	name := fmt.Sprintf("/pixelflut-test-%d", os.Getpid())
	t.Cleanup(func() { os.Remove(shmPath(name)) })
	return name
}

func TestSetGetRoundTrip(t *testing.T) {
	fb, err := CreateOrAttach(64, 32, tempSegmentName(t))
	if err != nil {
		t.Fatalf("CreateOrAttach: %v", err)
	}
	defer fb.Close()

	fb.Set(5, 10, 0x007F00FF)
	if got := fb.Get(5, 10); got != 0x007F00FF {
		t.Fatalf("Get(5,10) = %#08x, want 0x007f00ff", got)
	}
}

func TestSetOutOfBoundsIsNoOp(t *testing.T) {
	fb, err := CreateOrAttach(1920, 1080, tempSegmentName(t))
	if err != nil {
		t.Fatalf("CreateOrAttach: %v", err)
	}
	defer fb.Close()

	before := make([]byte, len(fb.raw))
	copy(before, fb.raw)

	fb.Set(2000, 500, 0xFFFFFFFF)

	for i := range before {
		if before[i] != fb.raw[i] {
			t.Fatalf("framebuffer mutated by out-of-bounds write at byte %d", i)
		}
	}
}

func TestBoundsEdges(t *testing.T) {
	fb, err := CreateOrAttach(1920, 1080, tempSegmentName(t))
	if err != nil {
		t.Fatalf("CreateOrAttach: %v", err)
	}
	defer fb.Close()

	before := make([]byte, len(fb.raw))
	copy(before, fb.raw)

	fb.Set(fb.Width, 0, 0xAABBCCDD)
	fb.Set(0, fb.Height, 0xAABBCCDD)

	for i := range before {
		if before[i] != fb.raw[i] {
			t.Fatalf("framebuffer mutated by edge out-of-bounds write at byte %d", i)
		}
	}
}

func TestIdempotentApply(t *testing.T) {
	fb, err := CreateOrAttach(64, 32, tempSegmentName(t))
	if err != nil {
		t.Fatalf("CreateOrAttach: %v", err)
	}
	defer fb.Close()

	for i := 0; i < 5; i++ {
		fb.Set(3, 3, 0x00112233)
	}
	if got := fb.Get(3, 3); got != 0x00112233 {
		t.Fatalf("Get(3,3) = %#08x after repeated identical writes, want 0x00112233", got)
	}
}

func TestClaimStatsSlotIdempotent(t *testing.T) {
	fb, err := CreateOrAttach(64, 32, tempSegmentName(t))
	if err != nil {
		t.Fatalf("CreateOrAttach: %v", err)
	}
	defer fb.Close()

	mac := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	slot1, err := fb.ClaimStatsSlot(mac)
	if err != nil {
		t.Fatalf("ClaimStatsSlot: %v", err)
	}
	slot2, err := fb.ClaimStatsSlot(mac)
	if err != nil {
		t.Fatalf("ClaimStatsSlot second call: %v", err)
	}
	if slot1 != slot2 {
		t.Fatalf("claiming the same MAC twice gave different slots: %d vs %d", slot1, slot2)
	}

	other := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	slot3, err := fb.ClaimStatsSlot(other)
	if err != nil {
		t.Fatalf("ClaimStatsSlot other mac: %v", err)
	}
	if slot3 == slot1 {
		t.Fatalf("distinct MACs claimed the same slot")
	}
}
