package mobi

import (
	"bytes"
	"testing"
)

func TestStripTrailingEntries(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		flags uint16
		want  []byte
	}{
		{
			name:  "no flags",
			data:  []byte("text\x83"),
			flags: 0,
			want:  []byte("text\x83"),
		},
		{
			name:  "multibyte overlap only",
			data:  []byte("text\xe3\x81\x02"),
			flags: 0x1,
			want:  []byte("text"),
		},
		{
			name:  "one trailing entry",
			data:  []byte("text\xaa\xbb\x83"),
			flags: 0x2,
			want:  []byte("text"),
		},
		{
			name:  "trailing entry then multibyte",
			data:  []byte("text\x00\xaa\xbb\x83"),
			flags: 0x3,
			want:  []byte("text"),
		},
		{
			name:  "two trailing entries",
			data:  []byte("text\x01\x82\x05\x06\x07\x84"),
			flags: 0x6,
			want:  []byte("text"),
		},
		{
			name:  "multi-byte size varint",
			data:  append([]byte("text"), append(bytes.Repeat([]byte{'e'}, 128), 0x81, 0x02)...),
			flags: 0x2,
			want:  []byte("text"),
		},
		{
			name:  "entry larger than record",
			data:  []byte("ab\x90"),
			flags: 0x2,
			want:  []byte{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripTrailingEntries(tt.data, tt.flags)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("stripTrailingEntries() = %q, want %q", got, tt.want)
			}
		})
	}
}
