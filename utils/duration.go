package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"openmm_server/models"
)

var durationPart = regexp.MustCompile(`(\d+)\s*([dhms])`)

var durationUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"h": time.Hour,
	"m": time.Minute,
	"s": time.Second,
}

// ParseDuration reads strings such as "1d 2h 30m 15s". Unknown text is ignored,
// so the result is zero when nothing matched. Totals that do not fit in a
// time.Duration are a validation error.
func ParseDuration(s string) (time.Duration, error) {
	var total time.Duration
	for _, m := range durationPart.FindAllStringSubmatch(strings.ToLower(s), -1) {
		unit := durationUnits[m[2]]
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > math.MaxInt64/int64(unit) {
			return 0, models.Reasonf(models.ErrValidation, "duration %q is too long", s)
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, models.Reasonf(models.ErrValidation, "duration %q is too long", s)
		}
		total += part
	}
	return total, nil
}
