// Package dump renders parsed blocks into a single text artifact: one header
// line followed by every non-empty parser fragment in block order.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/parser"
)

// TimeLayout formats the timestamps in the dump header.
const TimeLayout = "2006-01-02 15:04:05"

// Stats summarizes a written dump.
type Stats struct {
	Blocks    int
	Fragments int
	Empty     int
	Bytes     int64
}

// Header returns the first line of a dump for count blocks fetched between
// start and end.
func Header(start, end time.Time, count int) string {
	return fmt.Sprintf("-- Dump of %s (%s - %s) Total object count: %d\n",
		end.Format(TimeLayout), start.Format(TimeLayout), end.Format(TimeLayout), count)
}

// Write renders blocks through p. Blocks whose fragment is empty (including
// failed fetches) contribute nothing; fragments are written verbatim.
func Write(w io.Writer, p parser.Parser, blocks []crawler.Block, start, end time.Time) (Stats, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	stats := Stats{Blocks: len(blocks)}

	if _, err := bw.WriteString(Header(start, end, len(blocks))); err != nil {
		return stats, fmt.Errorf("write dump header: %w", err)
	}
	for _, block := range blocks {
		fragment := p.Parse(block)
		if fragment == "" {
			stats.Empty++
			continue
		}
		if _, err := bw.WriteString(fragment); err != nil {
			return stats, fmt.Errorf("write fragment for entry %d: %w", block.ID, err)
		}
		stats.Fragments++
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("flush dump: %w", err)
	}
	stats.Bytes = cw.n
	return stats, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
