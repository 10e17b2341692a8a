package likelihood

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// table is a CSV body addressed by header name.
type table struct {
	source string
	cols   map[string]int
	rows   [][]string
}

// readTable reads a CSV with a header row and checks that every required
// column is present. Extra columns are ignored.
func readTable(r io.Reader, source string, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", source)
	}
	t := &table{source: source, cols: make(map[string]int), rows: records[1:]}
	for i, h := range records[0] {
		t.cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := t.cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing columns %s", source, strings.Join(missing, ", "))
	}
	return t, nil
}

func (t *table) str(row int, col string) string {
	return strings.TrimSpace(t.rows[row][t.cols[col]])
}

func (t *table) intAt(row int, col string) (int, error) {
	v, err := strconv.Atoi(t.str(row, col))
	if err != nil {
		return 0, fmt.Errorf("%s line %d: %s: %w", t.source, row+2, col, err)
	}
	return v, nil
}

func (t *table) floatAt(row int, col string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(row, col), 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: %s: %w", t.source, row+2, col, err)
	}
	return v, nil
}

// fields reads the listed columns of one row into dst, in order. Each dst
// element must be *int, *float64 or *string.
func (t *table) fields(row int, cols []string, dst ...any) error {
	for i, col := range cols {
		switch p := dst[i].(type) {
		case *string:
			*p = t.str(row, col)
		case *int:
			v, err := t.intAt(row, col)
			if err != nil {
				return err
			}
			*p = v
		case *float64:
			v, err := t.floatAt(row, col)
			if err != nil {
				return err
			}
			*p = v
		default:
			panic(fmt.Sprintf("unsupported field type %T", dst[i]))
		}
	}
	return nil
}

func openFile[T any](path string, read func(io.Reader, string) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return read(f, path)
}
