package billing

import (
	"testing"
	"time"
)

func TestExpiryDate(t *testing.T) {
	start := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		value int
		unit  string
		want  time.Time
	}{
		{value: 3, unit: "HOUR", want: start.Add(3 * time.Hour)},
		{value: 2, unit: "day", want: start.AddDate(0, 0, 2)},
		{value: 1, unit: "WEEK", want: start.AddDate(0, 0, 7)},
		{value: 1, unit: "MONTH", want: start.AddDate(0, 1, 0)},
		{value: 5, unit: "YEAR", want: start.AddDate(0, 0, 1)},
		{value: 0, unit: "MONTH", want: start.AddDate(0, 0, 1)},
	}

	for _, tt := range tests {
		if got := ExpiryDate(start, tt.value, tt.unit); !got.Equal(tt.want) {
			t.Fatalf("ExpiryDate(%d %s) = %s, want %s", tt.value, tt.unit, got, tt.want)
		}
	}
}

func TestParseBillFilter(t *testing.T) {
	tests := []struct {
		in   string
		want BillFilter
	}{
		{in: "paid", want: BillsPaid},
		{in: " UNPAID ", want: BillsUnpaid},
		{in: "", want: BillsAll},
		{in: "other", want: BillsAll},
	}
	for _, tt := range tests {
		if got := ParseBillFilter(tt.in); got != tt.want {
			t.Fatalf("ParseBillFilter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
