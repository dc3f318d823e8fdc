package fdpool

import "fmt"

// Advice is a posix_fadvise access pattern hint. The zero value means no
// hint is issued.
type Advice int

const (
	// AdviceNone issues no hint.
	AdviceNone Advice = iota

	// AdviceSequential tells the kernel reads will be sequential,
	// enabling aggressive readahead.
	AdviceSequential

	// AdviceRandom tells the kernel reads will be random, disabling
	// readahead.
	AdviceRandom

	// AdviceWillNeed asks the kernel to start populating the page cache
	// for the range.
	AdviceWillNeed

	// AdviceDontNeed asks the kernel to drop cached pages for the range.
	// Issued before a read it forces the read to hit the device, which
	// is how cold-read throughput is measured.
	AdviceDontNeed
)

// String returns the flag-style name of the advice.
func (a Advice) String() string {
	switch a {
	case AdviceNone:
		return "none"
	case AdviceSequential:
		return "sequential"
	case AdviceRandom:
		return "random"
	case AdviceWillNeed:
		return "willneed"
	case AdviceDontNeed:
		return "dontneed"
	default:
		return fmt.Sprintf("advice(%d)", int(a))
	}
}

// ParseAdvice parses a flag or config string into an Advice.
func ParseAdvice(s string) (Advice, error) {
	switch s {
	case "", "none":
		return AdviceNone, nil
	case "sequential":
		return AdviceSequential, nil
	case "random":
		return AdviceRandom, nil
	case "willneed":
		return AdviceWillNeed, nil
	case "dontneed":
		return AdviceDontNeed, nil
	default:
		return AdviceNone, fmt.Errorf("unknown advice %q (want none, sequential, random, willneed or dontneed)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so Advice fields can be
// decoded from config files.
func (a *Advice) UnmarshalText(text []byte) error {
	advice, err := ParseAdvice(string(text))
	if err != nil {
		return err
	}
	*a = advice
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Advice) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
