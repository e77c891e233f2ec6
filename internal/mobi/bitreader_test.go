package mobi

import "testing"

func TestBitReader(t *testing.T) {
	r := newBitReader([]byte{0xAB, 0xCD, 0xEF})

	if got := r.left(); got != 24 {
		t.Fatalf("left() = %d, want 24", got)
	}
	if got := r.peek(); got != 0xABCDEF00 {
		t.Fatalf("peek() = %#x, want 0xabcdef00", got)
	}
	// peek does not consume.
	if got := r.peek(); got != 0xABCDEF00 {
		t.Fatalf("second peek() = %#x, want 0xabcdef00", got)
	}

	steps := []struct {
		eat      int
		wantOK   bool
		wantPeek uint32
		wantLeft int
	}{
		{eat: 4, wantOK: true, wantPeek: 0xBCDEF000, wantLeft: 20},
		{eat: 3, wantOK: true, wantPeek: 0xE6F78000, wantLeft: 17},
		{eat: 13, wantOK: true, wantPeek: 0xF0000000, wantLeft: 4},
		{eat: 4, wantOK: true, wantPeek: 0, wantLeft: 0},
		{eat: 1, wantOK: false, wantPeek: 0, wantLeft: -1},
	}
	for i, s := range steps {
		if ok := r.eat(s.eat); ok != s.wantOK {
			t.Fatalf("step %d: eat(%d) = %v, want %v", i, s.eat, ok, s.wantOK)
		}
		if got := r.peek(); got != s.wantPeek {
			t.Fatalf("step %d: peek() = %#x, want %#x", i, got, s.wantPeek)
		}
		if got := r.left(); got != s.wantLeft {
			t.Fatalf("step %d: left() = %d, want %d", i, got, s.wantLeft)
		}
	}
}

func TestBitReader_DoesNotAliasInput(t *testing.T) {
	data := []byte{0x80}
	r := newBitReader(data)
	data[0] = 0x00
	if got := r.peek(); got != 0x80000000 {
		t.Fatalf("peek() = %#x, want 0x80000000", got)
	}
}

func TestBitReader_Empty(t *testing.T) {
	r := newBitReader(nil)
	if got := r.left(); got != 0 {
		t.Fatalf("left() = %d, want 0", got)
	}
	if got := r.peek(); got != 0 {
		t.Fatalf("peek() = %#x, want 0", got)
	}
}

func TestBitReader_EndOfDataExcludesPadding(t *testing.T) {
	r := newBitReader([]byte{0xF0})

	// The padding is readable through peek but does not count as data.
	if ok := r.eat(4); !ok {
		t.Fatal("eat(4) = false inside the data")
	}
	if got := r.peek(); got != 0 {
		t.Fatalf("peek() = %#x, want 0", got)
	}
	if got := r.left(); got != 4 {
		t.Fatalf("left() = %d, want 4", got)
	}
	if ok := r.eat(12); ok {
		t.Fatal("eat(12) = true, want false for a code running into the padding")
	}
	if got := r.left(); got != -8 {
		t.Fatalf("left() = %d, want -8", got)
	}
}
