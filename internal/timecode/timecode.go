// Package timecode converts between clip display times ("M:SS", "H:MM:SS")
// and seconds.
package timecode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidTime = errors.New("invalid time value")

// Parse converts "M:SS" or "H:MM:SS" into seconds. Strings with any other
// number of colon-separated parts parse as zero.
func Parse(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, nil
	}

	nums := make([]float64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(n) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		nums[i] = n
	}

	if len(nums) == 2 {
		return nums[0]*60 + nums[1], nil
	}
	return nums[0]*3600 + nums[1]*60 + nums[2], nil
}

// Format renders seconds as "M:SS". Minutes are unbounded: an hour-long
// offset formats as "61:01", which Parse reads back as 3661.
func Format(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int64(math.Floor(seconds / 60))
	secs := int64(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%d:%02d", mins, secs)
}

// Value is a clip time as it travels in JSON: either a number of seconds
// or a display string. It marshals back in the form it was received.
type Value struct {
	str    string
	num    float64
	isNum  bool
	isNull bool
}

func String(s string) Value { return Value{str: s} }

func Seconds(n float64) Value { return Value{num: n, isNum: true} }

// IsZero reports whether the value is absent (null or empty string).
func (v Value) IsZero() bool {
	return v.isNull || (!v.isNum && v.str == "")
}

// Seconds returns numeric values unchanged and parses strings.
func (v Value) Seconds() (float64, error) {
	if v.isNum {
		return v.num, nil
	}
	if v.IsZero() {
		return 0, nil
	}
	return Parse(v.str)
}

func (v Value) String() string {
	if v.isNum {
		return Format(v.num)
	}
	return v.str
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isNum {
		return json.Marshal(v.num)
	}
	if v.isNull {
		return []byte("null"), nil
	}
	return json.Marshal(v.str)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{isNull: true}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{str: s}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTime, string(data))
	}
	*v = Value{num: n, isNum: true}
	return nil
}
