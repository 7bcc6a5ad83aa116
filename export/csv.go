package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/egonelbre/exp-esplog/esplog"
)

// csvHeader is the first row written by WriteCSV.
var csvHeader = []string{"timestamp", "axis", "x", "y", "z"}

// WriteCSV writes samples as CSV rows, one sample per row.
func WriteCSV(w io.Writer, samples []esplog.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}

	row := make([]string, len(csvHeader))
	for i, s := range samples {
		row[0] = strconv.FormatFloat(s.Timestamp, 'f', 6, 64)
		row[1] = s.Axis.String()
		row[2] = strconv.FormatFloat(s.X, 'f', 6, 64)
		row[3] = strconv.FormatFloat(s.Y, 'f', 6, 64)
		row[4] = strconv.FormatFloat(s.Z, 'f', 6, 64)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
