package audio

import "math"

// The telephony channel carries G.711 mu-law mono at 8kHz, 20ms frames
// (160 bytes). Decoding stays in this package so energy measurement never
// depends on the recognizer being up.

const muLawBias = 0x84

// DecodeMulaw expands a mu-law frame to linear PCM16 samples.
func DecodeMulaw(frame []byte) []int16 {
	out := make([]int16, len(frame))
	for i, b := range frame {
		out[i] = decodeSample(b)
	}
	return out
}

func decodeSample(b byte) int16 {
	u := ^b
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	sample := ((int32(mantissa) << 3) + muLawBias) << exponent
	sample -= muLawBias
	if sign != 0 {
		sample = -sample
	}
	return int16(sample)
}

// RMS returns the root-mean-square energy of a decoded frame.
// Zero-length frames have zero energy.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
