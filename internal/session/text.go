package session

import "strings"

// Sentence boundaries that trigger a synthesis flush.
var sentenceMarks = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// sentenceBuffer batches streamed text into synthesis submissions: flush on
// sentence-boundary punctuation, or once min characters accumulate without
// one. This bounds synthesis-start latency without fragmenting every token
// into its own request.
type sentenceBuffer struct {
	min int
	buf string
}

// add absorbs one text increment and returns any segments now ready.
func (b *sentenceBuffer) add(text string) []string {
	b.buf += text
	cut := -1
	for _, m := range sentenceMarks {
		if i := strings.LastIndex(b.buf, m); i > cut {
			cut = i
		}
	}
	if cut >= 0 {
		seg := strings.TrimSpace(b.buf[:cut+1])
		b.buf = strings.TrimLeft(b.buf[cut+1:], " \n")
		if seg == "" {
			return nil
		}
		return []string{seg}
	}
	if b.min > 0 && len(b.buf) >= b.min {
		seg := strings.TrimSpace(b.buf)
		b.buf = ""
		if seg == "" {
			return nil
		}
		return []string{seg}
	}
	return nil
}

// rest drains whatever remains at end of stream.
func (b *sentenceBuffer) rest() string {
	seg := strings.TrimSpace(b.buf)
	b.buf = ""
	return seg
}
