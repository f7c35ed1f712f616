package sortedset

import (
	"math"
	"strconv"

	"github.com/ordkv/ordkv/storage/packedseq"
	"github.com/ordkv/ordkv/util"
)

// formatScore renders a score for compact storage: integral values inside
// the float64-exact range print as plain integers (and get the narrow
// integer entry classes for free), everything else as a round-trippable
// float.
func formatScore(score float64) string {
	switch {
	case math.IsInf(score, 1):
		return "inf"
	case math.IsInf(score, -1):
		return "-inf"
	case score == math.Trunc(score) && math.Abs(score) < (1<<53):
		return strconv.FormatInt(int64(score), 10)
	default:
		return strconv.FormatFloat(score, 'g', 17, 64)
	}
}

func parseScoreValue(v packedseq.Value) float64 {
	if v.IsInt {
		return float64(v.Int)
	}
	score, err := strconv.ParseFloat(string(v.Bytes), 64)
	util.AssertNoError(err)
	return score
}
