package recognizer

import (
	"reflect"
	"testing"
)

func TestRecognizeJudgmentHeader(t *testing.T) {
	text := "Before the High Court of Bombay, Justice Sharma heard the appeal of Mr. Ramesh Kumar " +
		"against the State Bank on 15th January 2020. The order of the National Green Tribunal dated " +
		"2020-01-15 was set aside in the State of Maharashtra."

	got := New().Recognize(text)

	if !reflect.DeepEqual(got.Persons, []string{"Justice Sharma", "Mr. Ramesh Kumar"}) {
		t.Errorf("Unexpected persons: %v", got.Persons)
	}
	if len(got.Organizations) == 0 {
		t.Errorf("Expected organizations, got none")
	}
	if !reflect.DeepEqual(got.Dates, []string{"15th January 2020", "2020-01-15"}) {
		t.Errorf("Unexpected dates: %v", got.Dates)
	}
	wantLocations := []string{"High Court of Bombay", "State of Maharashtra"}
	if !reflect.DeepEqual(got.Locations, wantLocations) {
		t.Errorf("Unexpected locations: %v", got.Locations)
	}
}

func TestRecognizeEmptyCategories(t *testing.T) {
	got := New().Recognize("nothing notable in lowercase text.")
	for name, list := range map[string][]string{
		"persons":       got.Persons,
		"organizations": got.Organizations,
		"dates":         got.Dates,
		"locations":     got.Locations,
	} {
		if list == nil {
			t.Errorf("Category %s must be an empty slice, not nil", name)
		}
		if len(list) != 0 {
			t.Errorf("Expected no %s, got %v", name, list)
		}
	}
}

func TestRecognizeDeduplicates(t *testing.T) {
	text := "Justice Sharma observed. Later, Justice Sharma concluded."
	got := New().Recognize(text)
	if !reflect.DeepEqual(got.Persons, []string{"Justice Sharma"}) {
		t.Errorf("Expected one deduplicated person, got %v", got.Persons)
	}
}
