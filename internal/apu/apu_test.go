package apu

import "testing"

func TestPushSampleAndDrain(t *testing.T) {
	a := New()
	a.PushSample(0, 1)
	a.PushSample(0, 2)
	a.PushSample(0, 3)

	first, ok := a.fifoA.drain()
	if !ok || first != 1 {
		t.Fatalf("first drained sample got %d ok=%v, want 1", first, ok)
	}
	if needsRefill := a.Drain(0); !needsRefill {
		t.Fatalf("1 sample left in a 32-deep FIFO is below the refill threshold and should request a refill")
	}
}

func TestDrainOrderIsFIFO(t *testing.T) {
	a := New()
	for i := int8(0); i < 4; i++ {
		a.PushSample(1, i)
	}
	for want := int8(0); want < 4; want++ {
		got, ok := a.fifoB.drain()
		if !ok {
			t.Fatalf("expected a sample, FIFO reported empty")
		}
		if got != want {
			t.Fatalf("drain order got %d, want %d", got, want)
		}
	}
	if _, ok := a.fifoB.drain(); ok {
		t.Fatalf("drain on empty FIFO should report ok=false")
	}
}

func TestPushWordOrdersBytesLittleEndian(t *testing.T) {
	a := New()
	a.PushWord(0, 0x04030201)
	for want := int8(1); want <= 4; want++ {
		got, ok := a.fifoA.drain()
		if !ok || got != want {
			t.Fatalf("pushWord byte order got %d ok=%v, want %d", got, ok, want)
		}
	}
}

func TestNeedsRefillThreshold(t *testing.T) {
	a := New()
	for i := 0; i < fifoCapacity; i++ {
		a.PushSample(0, int8(i))
	}
	if needsRefill := a.Drain(0); needsRefill {
		t.Fatalf("32 samples draining to 31 should still be above the refill threshold")
	}
	// Drain down to exactly the threshold.
	for a.fifoA.len > refillThreshold {
		a.fifoA.drain()
	}
	if !a.fifoA.needsRefill() {
		t.Fatalf("FIFO at the refill threshold should report needsRefill")
	}
}

func TestFullFifoDropsIncomingBytes(t *testing.T) {
	a := New()
	for i := 0; i < fifoCapacity+5; i++ {
		a.PushSample(0, int8(i))
	}
	if a.fifoA.len != fifoCapacity {
		t.Fatalf("FIFO length got %d, want capped at %d", a.fifoA.len, fifoCapacity)
	}
	first, _ := a.fifoA.drain()
	if first != 0 {
		t.Fatalf("oldest retained sample got %d, want 0 (overflow bytes dropped, not the oldest evicted)", first)
	}
}

func TestResetClearsBothChannels(t *testing.T) {
	a := New()
	a.PushSample(0, 1)
	a.PushSample(1, 1)
	a.Reset()
	if a.fifoA.len != 0 || a.fifoB.len != 0 {
		t.Fatalf("Reset should empty both FIFOs")
	}
}
