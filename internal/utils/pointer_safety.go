package utils

import "time"

func Ptr[T any](v T) *T {
	return &v
}

// UnixPtr converts a unix timestamp to a time pointer, nil for zero.
func UnixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	return Ptr(time.Unix(sec, 0).UTC())
}
