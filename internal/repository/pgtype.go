package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Parameter constructors for nullable columns.

func DateOf(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}

// TextOf treats the empty string as NULL, matching how optional contact
// fields are stored.
func TextOf(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func Float8Of(v float64) pgtype.Float8 {
	return pgtype.Float8{Float64: v, Valid: true}
}

func Int8Of(id int64) pgtype.Int8 {
	return pgtype.Int8{Int64: id, Valid: true}
}

// TimeOfClock builds a TIME column value from a wall-clock hour and minute.
func TimeOfClock(hour, minute int) pgtype.Time {
	us := (int64(hour)*3600 + int64(minute)*60) * 1_000_000
	return pgtype.Time{Microseconds: us, Valid: true}
}

// Clock returns the hour and minute encoded in a TIME column value.
func Clock(t pgtype.Time) (hour, minute int) {
	s := t.Microseconds / 1_000_000
	return int(s / 3600), int(s % 3600 / 60)
}
