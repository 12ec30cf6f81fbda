package utils

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"
)

// IsEmpty checks if a value is empty.
func IsEmpty[T any](v T) bool {
	return reflect.ValueOf(&v).Elem().IsZero()
}

func GetTypeName(v interface{}) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		return fmt.Sprintf("*%s", t.Name())
	}

	return t.Name()
}

// SQLNullString returns a sql.NullString from the given string, valid only when non-empty.
func SQLNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SQLNullTime returns a sql.NullTime from the given time, valid only when non-zero.
func SQLNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

// TruncateString returns a truncated copy of str with an ellipsis suffix when it exceeds
// borderLength characters.
func TruncateString(str string, borderLength int) string {
	if borderLength < 0 {
		borderLength = 0
	}
	if len(str) <= borderLength {
		return str
	}
	return str[:borderLength] + "..."
}
