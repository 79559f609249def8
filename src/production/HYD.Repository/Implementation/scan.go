package implementation

import (
	"database/sql/driver"
	"fmt"
	"time"
)

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// scanTime accepts native time values as well as the text forms SQLite
// hands back when a column's declared type is lost (RETURNING, expressions).
type scanTime struct {
	Time  time.Time
	Valid bool
}

func (s *scanTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		s.Time, s.Valid = time.Time{}, false
		return nil
	case time.Time:
		s.Time, s.Valid = v.UTC(), true
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (s *scanTime) parse(v string) error {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			s.Time, s.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", v)
}

func (s scanTime) Value() (driver.Value, error) {
	if !s.Valid {
		return nil, nil
	}
	return s.Time, nil
}

func (s scanTime) Ptr() *time.Time {
	if !s.Valid {
		return nil
	}
	t := s.Time
	return &t
}

func nullableInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullableBool(p *bool) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
