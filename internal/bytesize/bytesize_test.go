package bytesize

import (
	"testing"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		// Plain numbers
		{"plain zero", "0", 0, false},
		{"plain bytes", "4096", 4096, false},
		{"plain large", "268435456", 268435456, false},

		// Bytes suffix
		{"bytes B", "4096B", 4096, false},
		{"bytes b lowercase", "4096b", 4096, false},

		// Binary units (x1024)
		{"kibibytes Ki", "256Ki", 256 * 1024, false},
		{"kibibytes KiB", "256KiB", 256 * 1024, false},
		{"mebibytes Mi", "4Mi", 4 * 1024 * 1024, false},
		{"mebibytes MiB", "4MiB", 4 * 1024 * 1024, false},
		{"gibibytes Gi", "1Gi", 1024 * 1024 * 1024, false},
		{"tebibytes TiB", "1TiB", 1024 * 1024 * 1024 * 1024, false},

		// Decimal units (x1000)
		{"kilobytes K", "1K", 1000, false},
		{"kilobytes KB", "1KB", 1000, false},
		{"megabytes MB", "100MB", 100 * 1000 * 1000, false},
		{"gigabytes G", "1G", 1000 * 1000 * 1000, false},
		{"terabytes TB", "1TB", 1000 * 1000 * 1000 * 1000, false},

		// Case insensitivity
		{"lowercase ki", "256ki", 256 * 1024, false},
		{"uppercase KI", "256KI", 256 * 1024, false},

		// Whitespace handling
		{"leading space", "  256Ki", 256 * 1024, false},
		{"trailing space", "256Ki  ", 256 * 1024, false},
		{"space between", "256 Ki", 256 * 1024, false},

		// Floating point
		{"float mebibytes", "1.5Mi", ByteSize(1.5 * 1024 * 1024), false},
		{"float gibibytes", "0.5Gi", ByteSize(0.5 * 1024 * 1024 * 1024), false},

		// Typical config values
		{"default block size", "256Ki", 262144, false},
		{"coalesce distance", "64Ki", 65536, false},
		{"small file cutoff", "1Mi", 1048576, false},

		// Error cases
		{"empty string", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"invalid unit", "1Xi", 0, true},
		{"negative number", "-1Gi", 0, true},
		{"no number", "Gi", 0, true},
		{"garbage", "abc", 0, true},
		{"two dots", "1.2.3Mi", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSize_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"simple", "256Ki", 256 * 1024, false},
		{"numeric", "4096", 4096, false},
		{"invalid", "invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ByteSize
			err := b.UnmarshalText([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ByteSize.UnmarshalText(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && b != tt.want {
				t.Errorf("ByteSize.UnmarshalText(%q) = %d, want %d", tt.input, b, tt.want)
			}
		})
	}
}

func TestByteSize_RoundTrip(t *testing.T) {
	// MarshalText output must parse back to the same value so saved config
	// files round-trip.
	for _, size := range []ByteSize{0, 512, 4 * KiB, 256 * KiB, 100 * MiB, 3 * GiB, ByteSize(1.5 * float64(MiB))} {
		text, err := size.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", size, err)
		}
		var back ByteSize
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != size {
			t.Errorf("round-trip %d -> %q -> %d", size, text, back)
		}
	}
}

func TestByteSize_String(t *testing.T) {
	tests := []struct {
		name  string
		input ByteSize
		want  string
	}{
		{"bytes", 512, "512B"},
		{"exact kibibytes", 256 * KiB, "256KiB"},
		{"exact mebibytes", 4 * MiB, "4MiB"},
		{"exact gibibytes", 1 * GiB, "1GiB"},
		{"exact tebibytes", 2 * TiB, "2TiB"},
		{"fractional mebibytes", ByteSize(1.5 * float64(MiB)), "1.50MiB"},
		{"fractional gibibytes", ByteSize(1.5 * float64(GiB)), "1.50GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.String(); got != tt.want {
				t.Errorf("ByteSize(%d).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSize_Conversions(t *testing.T) {
	size := ByteSize(256 * 1024)

	if got := size.Uint64(); got != 256*1024 {
		t.Errorf("ByteSize.Uint64() = %d, want %d", got, 256*1024)
	}

	if got := size.Int64(); got != 256*1024 {
		t.Errorf("ByteSize.Int64() = %d, want %d", got, 256*1024)
	}
}
