package paper_cmdline

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

type (
	// Stats is the server's cache report.
	Stats struct {
		MaxSize   uint64
		UsedSize  uint64
		TotalGets uint64
		MissRatio float64
		Policy    string
	}
)

func readStats(fr *frameReader) (stats *Stats, err error) {
	stats = &Stats{}

	if stats.MaxSize, err = fr.u64(); err != nil {
		return nil, err
	}
	if stats.UsedSize, err = fr.u64(); err != nil {
		return nil, err
	}
	if stats.TotalGets, err = fr.u64(); err != nil {
		return nil, err
	}
	if stats.MissRatio, err = fr.f64(); err != nil {
		return nil, err
	}
	if stats.Policy, err = fr.str(); err != nil {
		return nil, err
	}
	return
}

func appendStats(buf []byte, stats *Stats) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, stats.MaxSize)
	buf = binary.LittleEndian.AppendUint64(buf, stats.UsedSize)
	buf = binary.LittleEndian.AppendUint64(buf, stats.TotalGets)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(stats.MissRatio))
	return appendString(buf, stats.Policy)
}

// Report renders the stats as the multi-line text the shell prints.
func (s *Stats) Report() string {
	var sb strings.Builder
	sb.WriteString("paper stats\n")
	fmt.Fprintf(&sb, "max_size:\t%s (%d B)\n", humanize.Bytes(s.MaxSize), s.MaxSize)
	fmt.Fprintf(&sb, "used_size:\t%s (%d B)\n", humanize.Bytes(s.UsedSize), s.UsedSize)
	fmt.Fprintf(&sb, "total_gets:\t%s\n", humanize.Comma(int64(s.TotalGets)))
	fmt.Fprintf(&sb, "miss_ratio:\t%.3f\n", s.MissRatio)
	fmt.Fprintf(&sb, "policy:\t\t%s", s.Policy)
	return sb.String()
}
