package crawler

import (
	"fmt"
	"strings"
)

// Mode selects how the target set of a run is derived.
type Mode int

// Parsing modes.
const (
	ModeSingle Mode = iota
	ModeList
	ModeRange
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeList:
		return "list"
	case ModeRange:
		return "range"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the names understood by ParseMode.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode maps a mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "single":
		return ModeSingle, nil
	case "list":
		return ModeList, nil
	case "range", "multiple":
		return ModeRange, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
}

// TargetSet is the ordered, immutable sequence of entries a run fetches.
// Range sets are computed on demand rather than materialized.
type TargetSet struct {
	mode       Mode
	ids        []EntryID
	start, end EntryID
}

// SingleTarget builds a one-entry target set. Values below 1 are rejected.
func SingleTarget(value int64) (TargetSet, error) {
	if value < 1 {
		return TargetSet{}, fmt.Errorf("%w: got %d", ErrInvalidSingle, value)
	}
	if value > int64(^EntryID(0)) {
		return TargetSet{}, fmt.Errorf("%w: %d overflows entry id", ErrInvalidSingle, value)
	}
	return TargetSet{mode: ModeSingle, ids: []EntryID{EntryID(value)}}, nil
}

// ListTarget builds a target set from an already deduplicated ID sequence.
func ListTarget(ids []EntryID) (TargetSet, error) {
	if len(ids) == 0 {
		return TargetSet{}, ErrEmptyList
	}
	return TargetSet{mode: ModeList, ids: append([]EntryID(nil), ids...)}, nil
}

// RangeTarget builds the inclusive range [start, end]. start must be strictly
// smaller than end.
func RangeTarget(start, end EntryID) (TargetSet, error) {
	switch {
	case start > end:
		return TargetSet{}, fmt.Errorf("%w: %d > %d", ErrInvalidRange, start, end)
	case start == end:
		return TargetSet{}, fmt.Errorf("%w: %d", ErrDegenerateRange, start)
	}
	return TargetSet{mode: ModeRange, start: start, end: end}, nil
}

// Mode reports the parsing mode the set was built for.
func (t TargetSet) Mode() Mode {
	return t.mode
}

// Len returns the number of entries in the set.
func (t TargetSet) Len() int {
	if t.mode == ModeRange {
		return int(t.end-t.start) + 1
	}
	return len(t.ids)
}

// At returns the i-th entry in target order.
func (t TargetSet) At(i int) EntryID {
	if t.mode == ModeRange {
		return t.start + EntryID(i)
	}
	return t.ids[i]
}

// IDs materializes the set.
func (t TargetSet) IDs() []EntryID {
	out := make([]EntryID, t.Len())
	for i := range out {
		out[i] = t.At(i)
	}
	return out
}
