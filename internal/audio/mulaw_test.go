package audio

import "testing"

func TestDecodeMulawSilence(t *testing.T) {
	// 0xFF encodes zero (positive, minimum magnitude).
	samples := DecodeMulaw([]byte{0xFF, 0xFF, 0xFF})
	for i, s := range samples {
		if s != 0 {
			t.Errorf("sample %d: expected 0, got %d", i, s)
		}
	}
}

func TestDecodeMulawSignSymmetry(t *testing.T) {
	// Codes that differ only in the sign bit decode to negated samples.
	for _, code := range []byte{0x00, 0x10, 0x3A, 0x55} {
		pos := decodeSample(code | 0x80)
		neg := decodeSample(code)
		if pos != -neg {
			t.Errorf("code %#x: pos=%d neg=%d, expected symmetric", code, pos, neg)
		}
	}
}

func TestDecodeMulawExtremes(t *testing.T) {
	// 0x80 is the loudest positive code; must decode near full scale.
	if s := decodeSample(0x80); s < 30000 {
		t.Errorf("loudest positive code decoded to %d, expected near +32124", s)
	}
	if s := decodeSample(0x00); s > -30000 {
		t.Errorf("loudest negative code decoded to %d, expected near -32124", s)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("empty frame RMS = %f, expected 0", got)
	}
	if got := RMS([]int16{0, 0, 0, 0}); got != 0 {
		t.Errorf("silent frame RMS = %f, expected 0", got)
	}
	// Constant amplitude: RMS equals the amplitude.
	if got := RMS([]int16{1000, -1000, 1000, -1000}); got != 1000 {
		t.Errorf("constant frame RMS = %f, expected 1000", got)
	}
}
