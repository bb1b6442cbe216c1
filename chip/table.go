package chip

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrTableSyntax is returned for instrument table lines that do not match
// the Instrument(...) shape.
var ErrTableSyntax = errors.New("instrument table syntax")

// positional argument order of Instrument(...)
var positional = []Field{
	SawtoothWidth,
	SawtoothAmp,
	SquarePWM,
	SquareAmp,
	NoiseAmp,
	SquareDuty,
	NDSquareAmp,
}

// LoadTable reads an instrument table file
func LoadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ParseTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return t, nil
}

// ParseTable reads one Instrument(...) per line. Arguments are integers,
// either positional (sawtoothWidth, sawtoothAmp, squarePWM, squareAmp,
// noiseAmp, squareDuty, ndSquareAmp) or name=value. A trailing comma, blank
// lines and # comments are allowed; anything else is rejected.
func ParseTable(r io.Reader) (Table, error) {
	var t Table
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields, err := parseInstrument(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		t = append(t, NewInstrument(fields))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseInstrument(line string) (Fields, error) {
	fields := DefaultFields()

	line = strings.TrimSuffix(line, ",")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "Instrument(") || !strings.HasSuffix(line, ")") {
		return fields, errors.Wrapf(ErrTableSyntax, "expected Instrument(...), got %q", line)
	}
	body := strings.TrimSpace(line[len("Instrument(") : len(line)-1])
	if body == "" {
		return fields, nil
	}

	var seen [numFields]bool
	keywords := false
	for i, arg := range strings.Split(body, ",") {
		arg = strings.TrimSpace(arg)

		var field Field
		value := arg
		if name, v, ok := strings.Cut(arg, "="); ok {
			f, known := FieldByName(strings.TrimSpace(name))
			if !known {
				return fields, errors.Wrapf(ErrTableSyntax, "unknown field %q", strings.TrimSpace(name))
			}
			field, value, keywords = f, strings.TrimSpace(v), true
		} else {
			if keywords {
				return fields, errors.Wrapf(ErrTableSyntax, "positional argument %q after keyword argument", arg)
			}
			if i >= len(positional) {
				return fields, errors.Wrapf(ErrTableSyntax, "too many arguments (max %d)", len(positional))
			}
			field = positional[i]
		}

		if seen[field] {
			return fields, errors.Wrapf(ErrTableSyntax, "%s given twice", field)
		}
		seen[field] = true

		n, err := strconv.Atoi(value)
		if err != nil {
			return fields, errors.Wrapf(ErrTableSyntax, "%s: %q is not an integer", field, value)
		}
		fields.Set(field, n)
	}
	return fields, nil
}

// WriteTable writes t in the format ParseTable reads
func WriteTable(w io.Writer, t Table) error {
	bw := bufio.NewWriter(w)
	for _, inst := range t {
		if _, err := fmt.Fprintf(bw, "%s,\n", inst); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveTable writes t to path
func SaveTable(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTable(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
