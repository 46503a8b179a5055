// Package trace loads per-core memory reference traces from disk and
// provides an optional per-cycle debug narrator for the scheduler.
package trace

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/mesisim/internal/coherence"
	"github.com/sarchlab/mesisim/internal/mesierr"
)

const numCores = 4

// ParseFile reads one core's trace: whitespace-separated lines of the
// form "<op> <addr>", where op is R or W (case-insensitive) and addr
// is parsed as a Go integer literal, so "0x10", "010", and "16" are
// all accepted the way a C-style strtol caller would expect.
func ParseFile(path string) ([]coherence.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mesierr.NewInputError(path, "cannot open trace file", err)
	}
	defer func() { _ = f.Close() }()

	var refs []coherence.Reference
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, mesierr.NewInputError(path,
				fmt.Sprintf("line %d: expected \"<op> <addr>\", got %q", lineNo, line), nil)
		}

		op, err := parseOp(fields[0])
		if err != nil {
			return nil, mesierr.NewInputError(path, fmt.Sprintf("line %d: %v", lineNo, err), err)
		}

		addr, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			return nil, mesierr.NewInputError(path,
				fmt.Sprintf("line %d: bad address %q", lineNo, fields[1]), err)
		}

		refs = append(refs, coherence.Reference{Op: op, Addr: uint32(addr)})
	}
	if err := scanner.Err(); err != nil {
		return nil, mesierr.NewInputError(path, "error reading trace file", err)
	}

	return refs, nil
}

func parseOp(s string) (coherence.Op, error) {
	switch strings.ToUpper(s) {
	case "R":
		return coherence.OpRead, nil
	case "W":
		return coherence.OpWrite, nil
	default:
		return 0, fmt.Errorf("unknown operation %q, expected R or W", s)
	}
}

// LoadCores reads the four per-core trace files named
// "{prefix}_proc0.trace" through "{prefix}_proc3.trace".
func LoadCores(prefix string) ([numCores][]coherence.Reference, error) {
	var out [numCores][]coherence.Reference
	for c := 0; c < numCores; c++ {
		path := fmt.Sprintf("%s_proc%d.trace", prefix, c)
		refs, err := ParseFile(path)
		if err != nil {
			return out, err
		}
		out[c] = refs
	}
	return out, nil
}
