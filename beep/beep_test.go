package beep

import "testing"

func TestRenderLengths(t *testing.T) {
	start := samplesFor(Start)
	if want := int(sampleRate * 0.08); len(start) != want {
		t.Errorf("start tone = %d samples, want %d", len(start), want)
	}
	errTone := samplesFor(Error)
	beep, gap := int(sampleRate*0.08), int(sampleRate*0.05)
	if want := 2*beep + gap; len(errTone) != want {
		t.Errorf("error tone = %d samples, want %d", len(errTone), want)
	}
	// gap between the two error beeps is silent
	for i := beep; i < beep+gap; i++ {
		if errTone[i] != 0 {
			t.Fatalf("sample %d in gap = %d", i, errTone[i])
		}
	}
}

func TestRenderDecays(t *testing.T) {
	s := samplesFor(End)
	peak := func(from, to int) int16 {
		var p int16
		for _, v := range s[from:to] {
			if v < 0 {
				v = -v
			}
			p = max(p, v)
		}
		return p
	}
	n := len(s)
	if peak(0, n/4) <= peak(3*n/4, n) {
		t.Error("tone does not decay")
	}
}

func TestDisabledPlayIsNoop(t *testing.T) {
	Disable()
	Play(Start) // must not reach an audio server
}
