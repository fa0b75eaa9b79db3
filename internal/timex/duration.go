// Package timex provides a time.Duration that round-trips through JSON as
// a Go duration string ("2s", "150ms").
package timex

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "parse duration %q", value)
		}
		d.Duration = parsed
		return nil
	default:
		return errors.Newf("invalid duration %s", string(b))
	}
}
