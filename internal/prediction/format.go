package prediction

import (
	"math"
	"strconv"
	"strings"
)

// FormatCrores renders v with two decimals and comma-grouped thousands,
// e.g. 1234.5 -> "1,234.50". Non-finite values render as "NaN", "+Inf" or
// "-Inf".
func FormatCrores(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return s
	}
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, d := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
