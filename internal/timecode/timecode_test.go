package timecode

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"minutes and seconds", "1:30", 90},
		{"hours minutes seconds", "1:02:03", 3723},
		{"zero", "0:00", 0},
		{"unpadded", "2:5", 125},
		{"single part", "90", 0},
		{"four parts", "1:2:3:4", 0},
		{"empty", "", 0},
		{"fractional seconds", "0:10.5", 10.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_NonNumericParts(t *testing.T) {
	for _, input := range []string{"a:b", "1:xx", "x:1:2"} {
		if _, err := Parse(input); !errors.Is(err, ErrInvalidTime) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidTime", input, err)
		}
	}
}

// A single-part garbage string has the wrong shape and parses as zero
// rather than failing.
func TestParse_GarbageShape(t *testing.T) {
	got, err := Parse("garbage")
	if err != nil {
		t.Fatalf("Parse(garbage) error = %v", err)
	}
	if got != 0 {
		t.Errorf("Parse(garbage) = %v, want 0", got)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{90, "1:30"},
		{90.9, "1:30"},
		{599, "9:59"},
		{3661, "61:01"},
		{-3, "0:00"},
	}

	for _, tt := range tests {
		if got := Format(tt.seconds); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormat_NoHourComponent(t *testing.T) {
	formatted := Format(3661)
	if formatted != "61:01" {
		t.Fatalf("Format(3661) = %q, want 61:01", formatted)
	}

	back, err := Parse(formatted)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", formatted, err)
	}
	if back != 3661 {
		t.Errorf("Parse(Format(3661)) = %v, want 3661", back)
	}
}

func TestValue_Seconds(t *testing.T) {
	num := Seconds(90)
	if got, _ := num.Seconds(); got != 90 {
		t.Errorf("Seconds(90).Seconds() = %v, want 90", got)
	}

	str := String("1:30")
	if got, _ := str.Seconds(); got != 90 {
		t.Errorf("String(1:30).Seconds() = %v, want 90", got)
	}

	if !String("").IsZero() {
		t.Error("empty string value should be zero")
	}
	if Seconds(0).IsZero() {
		t.Error("numeric zero should not be zero-valued")
	}
}

func TestValue_JSONKeepsForm(t *testing.T) {
	var payload struct {
		Start Value `json:"start_time"`
		End   Value `json:"end_time"`
	}

	if err := json.Unmarshal([]byte(`{"start_time":"0:10","end_time":20}`), &payload); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	start, _ := payload.Start.Seconds()
	end, _ := payload.End.Seconds()
	if start != 10 || end != 20 {
		t.Fatalf("start,end = %v,%v, want 10,20", start, end)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(out) != `{"start_time":"0:10","end_time":20}` {
		t.Errorf("Marshal = %s", out)
	}
}

func TestValue_UnmarshalRejectsObjects(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"a":1}`), &v); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("Unmarshal(object) error = %v, want ErrInvalidTime", err)
	}
}
