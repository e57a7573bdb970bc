package digest

import "testing"

func TestNormalize(t *testing.T) {
	input := "  Paging splits memory into frames.\r\nEach frame is fixed size. \n"
	expected := "Paging splits memory into frames.\nEach frame is fixed size."
	if got := Normalize(input); got != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, got)
	}
}

func TestOf(t *testing.T) {
	t.Run("generates sha256 hex", func(t *testing.T) {
		// sha256("abc")
		expected := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
		if got := Of("abc"); got != expected {
			t.Errorf("Expected hash '%s', but got '%s'", expected, got)
		}
	})

	t.Run("identical text has identical hash", func(t *testing.T) {
		if Of("A process is a program in execution.") != Of("A process is a program in execution.") {
			t.Error("Expected hashes for identical text to be the same")
		}
	})

	t.Run("line endings and padding do not matter", func(t *testing.T) {
		if Of("line one\r\nline two") != Of("  line one\nline two\n") {
			t.Error("Expected hashes to match after normalization")
		}
	})

	t.Run("case is significant", func(t *testing.T) {
		if Of("TCP") == Of("tcp") {
			t.Error("Expected hashes for differently cased text to differ")
		}
	})

	t.Run("different text has different hashes", func(t *testing.T) {
		if Of("Chunk 1") == Of("Chunk 2") {
			t.Error("Expected hashes for different text to be different")
		}
	})
}
