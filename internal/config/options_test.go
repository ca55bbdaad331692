package config

import "testing"

func TestDefaultWIsAtLeastTwo(t *testing.T) {
	if w := DefaultW(0); w != 2 {
		t.Fatalf("DefaultW(0) = %d, want 2", w)
	}
	if w := DefaultW(3); w != 6 {
		t.Fatalf("DefaultW(3) = %d, want 6", w)
	}
}

func TestValidateDerivesQueueFromWorkers(t *testing.T) {
	o := &Options{Nmax: 4, W: 9}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if o.Q != 9 {
		t.Fatalf("Q = %d, want 9 (derived from W)", o.Q)
	}
	if o.Cmax != 1 {
		t.Fatalf("Cmax = %d, want default 1", o.Cmax)
	}
	if o.Host != "127.0.0.1" || o.Port != 5556 {
		t.Fatalf("transport defaults not applied: host=%q port=%d", o.Host, o.Port)
	}
}

func TestDefaultNmaxBounds(t *testing.T) {
	n := DefaultNmax()
	if n < 2 || n > 8 {
		t.Fatalf("DefaultNmax() = %d, out of documented [2,8] bound", n)
	}
}
