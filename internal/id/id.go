package id

import (
	"fmt"
	"strconv"
	"strings"
)

// SeqWidth is the zero-padded width of the sequence part of an entry number.
const SeqWidth = 6

// FormatEntryNumber returns an entry number like "VT000042".
func FormatEntryNumber(journal string, seq int64) string {
	return fmt.Sprintf("%s%0*d", journal, SeqWidth, seq)
}

// ParseEntryNumber parses "VT000042" for journal "VT" into 42.
func ParseEntryNumber(number, journal string) (int64, error) {
	if !strings.HasPrefix(number, journal) {
		return 0, fmt.Errorf("entry number %q does not belong to journal %q", number, journal)
	}
	digits := number[len(journal):]
	if len(digits) < SeqWidth || !allDigits(digits) {
		return 0, fmt.Errorf("invalid sequence in entry number %q", number)
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence in entry number %q: %w", number, err)
	}
	return seq, nil
}

// ValidJournal reports whether code is usable as a journal code: one to
// eight upper-case letters, so the sequence digits that follow are unambiguous.
func ValidJournal(code string) bool {
	if len(code) == 0 || len(code) > 8 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// IncrementTrailingDigit bumps the last digit of number. A trailing 9 does
// not carry into the previous position: a "0" is appended instead, so
// "CM101009" becomes "CM1010090". A number that does not end in a digit gets
// "1" appended.
func IncrementTrailingDigit(number string) string {
	if number == "" {
		return "1"
	}
	last := number[len(number)-1]
	switch {
	case last >= '0' && last < '9':
		return number[:len(number)-1] + string(last+1)
	case last == '9':
		return number + "0"
	default:
		return number + "1"
	}
}

// NextInSeries returns prefix followed by the successor of the largest numeric
// suffix among existing numbers sharing that prefix. The series width is the
// narrowest such suffix, at least three digits; longer suffixes belong to
// sub-accounts such as 5120090 and do not advance the series. A successor
// already taken is skipped. With no usable suffix it returns prefix + "000".
func NextInSeries(prefix string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	var suffixes []string
	width := 0
	for _, n := range existing {
		taken[n] = true
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		suffix := n[len(prefix):]
		if !allDigits(suffix) {
			continue
		}
		suffixes = append(suffixes, suffix)
		if width == 0 || len(suffix) < width {
			width = len(suffix)
		}
	}
	if len(suffixes) == 0 {
		return prefix + "000"
	}
	if width < 3 {
		width = 3
	}

	best := int64(-1)
	for _, suffix := range suffixes {
		if len(suffix) > width {
			continue
		}
		v, err := strconv.ParseInt(suffix, 10, 64)
		if err == nil && v > best {
			best = v
		}
	}
	next := fmt.Sprintf("%s%0*d", prefix, width, best+1)
	for taken[next] {
		best++
		next = fmt.Sprintf("%s%0*d", prefix, width, best+1)
	}
	return next
}

// Compare orders account numbers: shorter numbers first, then lexically.
// Within one series this matches numeric order of the suffixes.
func Compare(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Max returns the greatest number according to Compare, or "" for none.
func Max(numbers []string) string {
	var best string
	for _, n := range numbers {
		if best == "" || Compare(n, best) > 0 {
			best = n
		}
	}
	return best
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
