package models

import (
	"math"
	"strconv"
	"strings"
)

// FormatINR renders an amount in the Indian grouping used by the UI
// (₹1,200 / ₹1,20,000). Fractions are rounded to whole rupees.
func FormatINR(amount float64) string {
	neg := amount < 0
	n := int64(math.Round(math.Abs(amount)))
	digits := strconv.FormatInt(n, 10)

	var b strings.Builder
	b.WriteString("₹")
	if neg {
		b.WriteString("-")
	}
	if len(digits) <= 3 {
		b.WriteString(digits)
		return b.String()
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	b.WriteString(strings.Join(groups, ","))
	b.WriteString(",")
	b.WriteString(tail)
	return b.String()
}

// DisplayPrice returns the price label for a booking. Unpriced bookings show
// an hourly estimate when estimate is true, "-" otherwise.
func DisplayPrice(b *Booking, estimate bool) string {
	if b.Price != nil {
		return FormatINR(*b.Price)
	}
	if estimate && b.DurationHours > 0 {
		return FormatINR(float64(b.DurationHours * FallbackHourlyRate))
	}
	return "-"
}
