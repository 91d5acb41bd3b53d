package notification

import (
	"fmt"
	"time"
)

// FormatPrice форматирует сумму в центах
func FormatPrice(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// FormatDateTime дата и время в часовом поясе получателя
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Monday, January 2, 2006 at 15:04 MST")
}

// FormatDuration длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}
