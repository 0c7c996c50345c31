package strategyrt

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"stratexec/internal/errs"
)

var intervalPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseInterval accepts {N}s|{N}m|{N}h|{N}d or the literal "once". Unlike
// the looser reading that silently falls back to one minute on an
// unrecognized form, this parser refuses and returns a Policy error — a
// strategy with a malformed schedule should fail to start, not tick on an
// unintended cadence.
func ParseInterval(s string) (time.Duration, bool, error) {
	if s == "" || s == "once" {
		return 0, true, nil
	}

	m := intervalPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false, errs.New(errs.KindParameterOutOfRange, fmt.Sprintf("unrecognized interval %q", s))
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false, errs.New(errs.KindParameterOutOfRange, fmt.Sprintf("unrecognized interval %q", s))
	}

	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, false, nil
}
