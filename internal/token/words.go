// internal/token/words.go
package token

import (
	"strconv"
	"strings"
)

var (
	ones  = []string{"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
	teens = []string{"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen"}
	tens  = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
)

// Words spells a clean amount ("1234.05") in English for the hint under the
// amount field. Fraction digits are read one by one. Returns "" for input
// that is not a number.
func Words(clean string) string {
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" || clean == "." || !amountPattern.MatchString(clean) {
		return ""
	}
	parts := strings.SplitN(clean, ".", 2)
	whole := strings.TrimLeft(parts[0], "0")
	if whole == "" {
		whole = "0"
	}
	n, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return ""
	}

	var result string
	if n == 0 {
		result = "zero"
	} else {
		result = spell(n)
	}
	if len(parts) == 2 && parts[1] != "" {
		digits := make([]string, 0, len(parts[1]))
		for _, r := range parts[1] {
			if r == '0' {
				digits = append(digits, "zero")
				continue
			}
			digits = append(digits, ones[r-'0'])
		}
		result += " point " + strings.Join(digits, " ")
	}
	return result
}

func spell(n uint64) string {
	switch {
	case n < 10:
		return ones[n]
	case n < 20:
		return teens[n-10]
	case n < 100:
		s := tens[n/10]
		if n%10 != 0 {
			s += "-" + ones[n%10]
		}
		return s
	case n < 1000:
		s := ones[n/100] + " hundred"
		if n%100 != 0 {
			s += " and " + spell(n%100)
		}
		return s
	}
	for _, scale := range []struct {
		value uint64
		name  string
	}{
		{1_000_000_000, "billion"},
		{1_000_000, "million"},
		{1_000, "thousand"},
	} {
		if n >= scale.value {
			s := spell(n/scale.value) + " " + scale.name
			if n%scale.value != 0 {
				s += " " + spell(n%scale.value)
			}
			return s
		}
	}
	return ""
}
