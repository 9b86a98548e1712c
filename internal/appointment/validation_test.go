package appointment

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestValidate(t *testing.T) {
	existing := []Appointment{appt("Bob", at(2024, 6, 10, 10, 30), "diana")}

	tests := []struct {
		name string
		in   ValidationInput
		want []string
	}{
		{
			name: "valid",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T12:00", Cost: "50"},
		},
		{
			name: "everything missing",
			in:   ValidationInput{},
			want: []string{MsgNameRequired, MsgDateRequired},
		},
		{
			name: "blank name",
			in:   ValidationInput{Name: "   ", Date: "2024-06-10T12:00"},
			want: []string{MsgNameRequired},
		},
		{
			name: "unparseable date skips date rules",
			in:   ValidationInput{Name: "Ana", Date: "tomorrow"},
			want: []string{MsgDateInvalid},
		},
		{
			name: "negative cost",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T12:00", Cost: "-1"},
			want: []string{MsgCostInvalid},
		},
		{
			name: "non numeric cost",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T12:00", Cost: "abc"},
			want: []string{MsgCostInvalid},
		},
		{
			name: "NaN cost",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T12:00", Cost: "NaN"},
			want: []string{MsgCostInvalid},
		},
		{
			name: "infinite cost",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T12:00", Cost: "Inf"},
			want: []string{MsgCostInvalid},
		},
		{
			name: "signed infinity cost",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T12:00", Cost: "+Infinity"},
			want: []string{MsgCostInvalid},
		},
		{
			name: "overflowing cost",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T12:00", Cost: "1e309"},
			want: []string{MsgCostInvalid},
		},
		{
			name: "zero cost is fine",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T12:00", Cost: "0"},
		},
		{
			name: "sunday",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-16T12:00"},
			want: []string{MsgSunday},
		},
		{
			name: "before opening",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-11T08:59"},
			want: []string{MsgOutsideHours},
		},
		{
			name: "opening",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-11T09:00"},
		},
		{
			name: "last start",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-11T20:00"},
		},
		{
			name: "after last start",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-11T20:01"},
			want: []string{MsgOutsideHours},
		},
		{
			name: "sunday night",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-16T21:00"},
			want: []string{MsgSunday, MsgOutsideHours},
		},
		{
			name: "conflict",
			in:   ValidationInput{Name: "Ana", Date: "2024-06-10T10:00"},
			want: []string{"the 10:00 slot is already taken by Bob"},
		},
		{
			name: "all rules in order",
			in:   ValidationInput{Date: "2024-06-16T07:00", Cost: "-3"},
			want: []string{MsgNameRequired, MsgCostInvalid, MsgSunday, MsgOutsideHours},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.in, existing, "diana", time.UTC)
			if res.Valid != (len(tt.want) == 0) {
				t.Fatalf("Valid = %v, errors %v", res.Valid, res.Errors)
			}
			if len(tt.want) == 0 {
				if res.Err() != nil {
					t.Errorf("unexpected error: %v", res.Err())
				}
				return
			}
			if !reflect.DeepEqual(res.Errors, tt.want) {
				t.Errorf("errors = %q, want %q", res.Errors, tt.want)
			}
			var verr *ValidationError
			if !errors.As(res.Err(), &verr) {
				t.Errorf("Err() should be a *ValidationError")
			}
		})
	}
}

func TestValidateConflictDetails(t *testing.T) {
	bob := appt("Bob", at(2024, 6, 10, 10, 30), "diana")

	res := Validate(ValidationInput{Name: "Ana", Date: "2024-06-10T10:00"}, []Appointment{bob}, "diana", time.UTC)
	if res.Conflict == nil || res.Conflict.ID != bob.ID {
		t.Fatalf("expected conflict with Bob, got %+v", res.Conflict)
	}
	if !res.Start.Equal(at(2024, 6, 10, 10, 0)) {
		t.Errorf("Start = %s", res.Start)
	}

	// Editing Bob's own appointment ignores itself.
	res = Validate(ValidationInput{Name: "Bob", Date: "2024-06-10T11:00", ID: bob.ID}, []Appointment{bob}, "diana", time.UTC)
	if !res.Valid {
		t.Errorf("editing own appointment should pass: %v", res.Errors)
	}

	// Another therapist's calendar is not consulted.
	res = Validate(ValidationInput{Name: "Ana", Date: "2024-06-10T10:00"}, []Appointment{bob}, "marta", time.UTC)
	if !res.Valid {
		t.Errorf("other therapist should not conflict: %v", res.Errors)
	}
}

func TestValidateUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	res := Validate(ValidationInput{Name: "Ana", Date: "2024-06-10T09:00"}, nil, "diana", loc)
	if !res.Valid {
		t.Fatalf("unexpected errors %v", res.Errors)
	}
	if res.Start.Location() != loc || res.Start.Hour() != 9 {
		t.Errorf("Start = %s", res.Start)
	}
}

func TestValidatePatientName(t *testing.T) {
	long := make([]rune, 101)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name  string
		valid bool
	}{
		{"Ana López", true},
		{"Al", true},
		{"A", false},
		{"  ", false},
		{string(long), false},
		{string(long[:100]), true},
	}
	for _, tt := range tests {
		if got := ValidatePatientName(tt.name) == ""; got != tt.valid {
			t.Errorf("ValidatePatientName(%q) valid = %v, want %v", tt.name, got, tt.valid)
		}
	}
}

func TestValidateIgnoresExcludeNil(t *testing.T) {
	existing := []Appointment{{ID: uuid.Nil, PatientName: "Ghost", StartTime: at(2024, 6, 10, 10, 0)}}
	res := Validate(ValidationInput{Name: "Ana", Date: "2024-06-10T10:00"}, existing, "diana", time.UTC)
	if res.Valid {
		t.Errorf("a nil exclude id must not hide records")
	}
}
