package view

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const dbTimeout = 5 * time.Second

// FormatAmount formats a whole-shilling amount for display.
func FormatAmount(amount decimal.Decimal) string {
	return "KES " + amount.StringFixed(2)
}

// FormatTime formats a timestamp in local time to the minute.
func FormatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
