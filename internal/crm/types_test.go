package crm

import (
	"testing"
	"time"
)

func TestReadFieldValueShape(t *testing.T) {
	o := Opportunity{CustomFields: []CustomField{{ID: "f1", Value: "Scheduled"}}}

	got, ok := ReadField(o, "f1")
	if !ok || got != "Scheduled" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestReadFieldFieldValueShape(t *testing.T) {
	o := Opportunity{CustomFields: []CustomField{{ID: "f1", FieldValue: "Sent"}}}

	got, ok := ReadField(o, "f1")
	if !ok || got != "Sent" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestReadFieldPrefersValueOverFieldValue(t *testing.T) {
	o := Opportunity{CustomFields: []CustomField{{ID: "f1", Value: "a", FieldValue: "b"}}}

	got, _ := ReadField(o, "f1")
	if got != "a" {
		t.Fatalf("got %q, want value member", got)
	}
}

func TestReadFieldNumericAndBool(t *testing.T) {
	o := Opportunity{CustomFields: []CustomField{
		{ID: "rating", Value: float64(5)},
		{ID: "fraction", Value: 4.5},
		{ID: "flag", FieldValue: true},
	}}

	if got, _ := ReadField(o, "rating"); got != "5" {
		t.Fatalf("rating = %q", got)
	}
	if got, _ := ReadField(o, "fraction"); got != "4.5" {
		t.Fatalf("fraction = %q", got)
	}
	if got, _ := ReadField(o, "flag"); got != "true" {
		t.Fatalf("flag = %q", got)
	}
}

func TestReadFieldAbsent(t *testing.T) {
	o := Opportunity{CustomFields: []CustomField{{ID: "f1", Value: ""}}}

	if _, ok := ReadField(o, "f1"); ok {
		t.Fatal("empty value should read as absent")
	}
	if _, ok := ReadField(o, "missing"); ok {
		t.Fatal("missing field should read as absent")
	}
	if _, ok := ReadField(o, ""); ok {
		t.Fatal("empty field id should read as absent")
	}
}

func TestReadFieldTimeRFC3339(t *testing.T) {
	o := Opportunity{CustomFields: []CustomField{{ID: "sched", Value: "2026-03-01T10:00:00Z"}}}

	got, ok := ReadFieldTime(o, "sched")
	if !ok {
		t.Fatal("expected a parsed time")
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadFieldTimeEpochMillis(t *testing.T) {
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := Opportunity{CustomFields: []CustomField{{ID: "sched", Value: float64(want.UnixMilli())}}}

	got, ok := ReadFieldTime(o, "sched")
	if !ok || !got.Equal(want) {
		t.Fatalf("got %v ok=%v, want %v", got, ok, want)
	}
}

func TestReadFieldTimeGarbage(t *testing.T) {
	o := Opportunity{CustomFields: []CustomField{{ID: "sched", Value: "soon"}}}

	if _, ok := ReadFieldTime(o, "sched"); ok {
		t.Fatal("unparsable value should not yield a time")
	}
}

func TestContactFullName(t *testing.T) {
	cases := []struct {
		first, last, want string
	}{
		{"Ada", "Lovelace", "Ada Lovelace"},
		{"Ada", "", "Ada"},
		{"", "Lovelace", "Lovelace"},
		{"", "", ""},
	}
	for _, tc := range cases {
		c := Contact{FirstName: tc.first, LastName: tc.last}
		if got := c.FullName(); got != tc.want {
			t.Errorf("FullName(%q, %q) = %q, want %q", tc.first, tc.last, got, tc.want)
		}
	}
}
