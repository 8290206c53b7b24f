package view

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const fechaDisplayLayout = "02-01-2006"

// FormatCLP renders an amount as Chilean pesos: integer, dot thousands
// separators, leading "$". Negative amounts carry the sign before the "$".
func FormatCLP(amount float64) string {
	negative := amount < 0
	value := int64(math.Round(math.Abs(amount)))

	digits := strconv.FormatInt(value, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	if negative {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

// FormatFecha renders a date as DD-MM-YYYY; zero times render empty.
func FormatFecha(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(fechaDisplayLayout)
}

// FormatBool renders a flag as Sí/No.
func FormatBool(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}
