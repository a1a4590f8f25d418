package eventlog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Position is a log-assigned, monotonically increasing record id in Redis stream form "<ms>-<seq>".
type Position struct {
	Ms  uint64
	Seq uint64
}

var (
	// Beginning precedes every record still retained.
	Beginning = Position{}
	// Latest resolves to the newest record at Tail time.
	Latest = Position{Ms: math.MaxUint64, Seq: math.MaxUint64}
)

func (p Position) String() string {
	if p == Latest {
		return "$"
	}
	return strconv.FormatUint(p.Ms, 10) + "-" + strconv.FormatUint(p.Seq, 10)
}

func (p Position) Less(o Position) bool {
	if p.Ms != o.Ms {
		return p.Ms < o.Ms
	}
	return p.Seq < o.Seq
}

// next returns the position following p for an append at wall-clock nowMs.
// A clock that moves backwards keeps the previous millisecond and bumps the sequence.
func (p Position) next(nowMs uint64) Position {
	if nowMs > p.Ms {
		return Position{Ms: nowMs}
	}
	return Position{Ms: p.Ms, Seq: p.Seq + 1}
}

func ParsePosition(s string) (Position, error) {
	if s == "$" {
		return Latest, nil
	}
	msPart, seqPart, ok := strings.Cut(s, "-")
	if !ok {
		seqPart = "0"
	}
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("eventlog: bad position %q: %w", s, err)
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("eventlog: bad position %q: %w", s, err)
	}
	return Position{Ms: ms, Seq: seq}, nil
}
