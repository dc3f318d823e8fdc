package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes that unmarshals from human-readable strings
// such as "256Ki", "4Mi", "100MB", or plain numbers. It is the unit used
// throughout the configuration for block sizes, coalesce distances and
// similar knobs.
//
// Supported formats:
//   - Plain numbers: 4096, 262144
//   - Binary units (x1024): Ki/KiB, Mi/MiB, Gi/GiB, Ti/TiB
//   - Decimal units (x1000): K/KB, M/MB, G/GB, T/TB
//   - Bytes: B
type ByteSize uint64

// Common byte size constants
const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// unitMultipliers maps lowercase unit suffixes to their byte multipliers
var unitMultipliers = map[string]ByteSize{
	"":    B,
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"m":   MB,
	"mb":  MB,
	"g":   GB,
	"gb":  GB,
	"t":   TB,
	"tb":  TB,
	"ki":  KiB,
	"kib": KiB,
	"mi":  MiB,
	"mib": MiB,
	"gi":  GiB,
	"gib": GiB,
	"ti":  TiB,
	"tib": TiB,
}

// splitSize separates the numeric prefix from the unit suffix.
// "1.5 Mi" -> ("1.5", "Mi"), "4096" -> ("4096", "").
func splitSize(s string) (num, unit string) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		i++
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// ParseByteSize parses a human-readable byte size string into a ByteSize.
// It accepts formats like "256Ki", "4Mi", "100MB", "4096", etc.
func ParseByteSize(s string) (ByteSize, error) {
	numStr, unitStr := splitSize(s)
	if numStr == "" {
		if strings.TrimSpace(s) == "" {
			return 0, fmt.Errorf("empty byte size string")
		}
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	multiplier, ok := unitMultipliers[strings.ToLower(unitStr)]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unitStr)
	}

	if strings.Contains(numStr, ".") {
		num, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", numStr)
		}
		return ByteSize(num * float64(multiplier)), nil
	}

	num, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", numStr)
	}
	return ByteSize(num) * multiplier, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields can be
// decoded directly from config files via mapstructure.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText implements encoding.TextMarshaler so saved config files carry
// the human-readable form instead of a raw byte count.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String returns a human-readable representation of the byte size.
// Exact multiples of binary units render without a fractional part.
func (b ByteSize) String() string {
	format := func(unit ByteSize, suffix string) string {
		if b%unit == 0 {
			return fmt.Sprintf("%d%s", uint64(b/unit), suffix)
		}
		return fmt.Sprintf("%.2f%s", float64(b)/float64(unit), suffix)
	}
	switch {
	case b >= TiB:
		return format(TiB, "TiB")
	case b >= GiB:
		return format(GiB, "GiB")
	case b >= MiB:
		return format(MiB, "MiB")
	case b >= KiB:
		return format(KiB, "KiB")
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Uint64 returns the ByteSize as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the ByteSize as an int64.
// Note: This may overflow for very large values.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
