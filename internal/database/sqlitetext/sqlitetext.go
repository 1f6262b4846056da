// Package sqlitetext renders values read by the Go SQLite drivers the way
// SQLite itself prints them, as sqlite3_column_text would return them.
//
// Both drivers decode columns declared DATE, DATETIME or TIMESTAMP into
// time.Time and hand REAL columns back as float64. Format turns those back
// into SQLite's text: REAL always carries a decimal point ("1000.0",
// "1.0e+20") and dates use SQLite's own date function layouts.
package sqlitetext

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05.999999999"
)

// Format renders v, read from a column declared as declType.
// nil renders as "".
func Format(v any, declType string) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return Real(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return Time(x, declType)
	default:
		return fmt.Sprint(x)
	}
}

// Real renders f like SQLite's "%!.15g": 15 significant digits and always a
// decimal point in the mantissa.
func Real(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case math.IsNaN(f):
		return ""
	}

	s := strconv.FormatFloat(f, 'g', 15, 64)
	if strings.ContainsRune(s, '.') {
		return s
	}
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		return s[:i] + ".0" + s[i:]
	}
	return s + ".0"
}

// Time renders t in SQLite's date layouts. A midnight value from a DATE
// column renders as a bare date. Layouts the driver parsed but SQLite does
// not produce (a "T" separator, minutes without seconds) come back in the
// canonical form.
func Time(t time.Time, declType string) string {
	_, offset := t.Zone()
	if offset != 0 {
		return t.Format(datetimeLayout + "-07:00")
	}
	if strings.EqualFold(declType, "DATE") && isMidnight(t) {
		return t.Format(dateLayout)
	}
	return t.Format(datetimeLayout)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
