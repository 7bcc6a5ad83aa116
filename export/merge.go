package export

import (
	"cmp"

	"golang.org/x/exp/slices"

	"github.com/egonelbre/exp-esplog/esplog"
)

// Merge returns gyro and accelerometer samples as one stream ordered by
// timestamp. Samples with equal timestamps keep gyro before accelerometer.
func Merge(result *esplog.Result) []esplog.Sample {
	merged := make([]esplog.Sample, 0, result.Len())
	merged = append(merged, result.Gyro...)
	merged = append(merged, result.Accel...)

	slices.SortStableFunc(merged, func(a, b esplog.Sample) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return merged
}
