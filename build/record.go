package build

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/meigma/zipgrid/dataset"
)

// ErrInvalidRecord is returned for records that cannot be placed in the
// shard tree.
var ErrInvalidRecord = errors.New("build: invalid record")

// Record is one postal code with the grid cell it falls in.
type Record struct {
	Code string
	City string
	Pop  int
	I    int
	J    int
}

// Validate checks that the code is a complete numeric code and the
// coordinates fit the packed representation.
func (r Record) Validate() error {
	if len(r.Code) != dataset.CodeLen {
		return fmt.Errorf("%w: code %q must have %d digits", ErrInvalidRecord, r.Code, dataset.CodeLen)
	}
	for i := range len(r.Code) {
		if r.Code[i] < '0' || r.Code[i] > '9' {
			return fmt.Errorf("%w: code %q is not numeric", ErrInvalidRecord, r.Code)
		}
	}
	if r.I < 0 || r.I > 0xff || r.J < 0 || r.J > 0xff {
		return fmt.Errorf("%w: code %s coordinates (%d,%d) out of range", ErrInvalidRecord, r.Code, r.I, r.J)
	}
	if r.Pop < 0 {
		return fmt.Errorf("%w: code %s has negative population", ErrInvalidRecord, r.Code)
	}
	return nil
}

func (r Record) entry() dataset.Entry {
	return dataset.Entry{Code: r.Code, Name: r.City, I: r.I, J: r.J}
}

var recordColumns = []string{"code", "city", "population", "i", "j"}

// LoadRecords reads records from CSV. The first row is a header naming the
// columns code, city, population, i and j in any order; other columns are
// ignored.
func LoadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidRecord)
	}
	if err != nil {
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idx := make([]int, len(recordColumns))
	for k, name := range recordColumns {
		i, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: header missing column %q", ErrInvalidRecord, name)
		}
		idx[k] = i
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		nums := make([]int, 3)
		for k, col := range idx[2:] {
			n, err := strconv.Atoi(strings.TrimSpace(row[col]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrInvalidRecord, line, recordColumns[k+2], err)
			}
			nums[k] = n
		}
		rec := Record{
			Code: strings.TrimSpace(row[idx[0]]),
			City: strings.TrimSpace(row[idx[1]]),
			Pop:  nums[0],
			I:    nums[1],
			J:    nums[2],
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}
