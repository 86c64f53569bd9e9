package chunked

import "testing"

func TestGetBuffer(t *testing.T) {
	buf, pooled := getBuffer(DefaultBufferSize)
	if !pooled {
		t.Error("getBuffer(DefaultBufferSize) not pooled")
	}
	if len(buf) != DefaultBufferSize {
		t.Errorf("len = %d, want %d", len(buf), DefaultBufferSize)
	}
	putBuffer(buf)

	buf, pooled = getBuffer(128)
	if pooled {
		t.Error("getBuffer(128) pooled, want private buffer")
	}
	if len(buf) != 128 {
		t.Errorf("len = %d, want 128", len(buf))
	}
	putBuffer(buf)
}

func TestHasByte(t *testing.T) {
	word := uint64(0x0a2c616263646566) // "fedcba,\n" little endian
	if !hasByte(word, ',') {
		t.Error("hasByte(',') = false")
	}
	if !hasByte(word, '\n') {
		t.Error("hasByte('\\n') = false")
	}
	if hasByte(word, '"') {
		t.Error("hasByte('\"') = true")
	}
}

func TestSkipWords(t *testing.T) {
	data := []byte("abcdefghijklmnop,rest")
	if got := skipWords(data, 0, '"', []byte{','}, true); got != 16 {
		t.Errorf("skipWords() = %d, want 16", got)
	}
	// Inside quotes only the quote byte matters.
	if got := skipWords(data, 0, '"', []byte{','}, false); got != 16 {
		t.Errorf("skipWords() quoted = %d, want 16", got)
	}
	if got := skipWords([]byte("ab\"defghijk"), 0, '"', nil, false); got != 0 {
		t.Errorf("skipWords() with quote = %d, want 0", got)
	}
}
