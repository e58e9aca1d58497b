package osm

import (
	"reflect"
	"testing"
)

func TestConflate(t *testing.T) {
	current := map[string]string{
		"highway": "residential",
		"name":    "Main St",
		"surface": "paved",
	}

	change := TagChange{
		OSMType: "node",
		OSMID:   42,
		Set: map[string]string{
			"highway": "tertiary",  // updated
			"name":    "Main St",   // redundant
			"lit":     "yes",       // added
		},
		Delete: []string{"surface", "oneway"}, // first deleted, second no-op
	}

	c := Conflate(current, 3, change)

	if got, want := c.Added, map[string]string{"lit": "yes"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Added = %v, want %v", got, want)
	}
	if got, want := c.Updated, map[string][2]string{"highway": {"residential", "tertiary"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("Updated = %v, want %v", got, want)
	}
	if got, want := c.Redundant, []string{"name"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Redundant = %v, want %v", got, want)
	}
	if got, want := c.Deleted, []string{"surface"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Deleted = %v, want %v", got, want)
	}
	if got, want := c.NoopDeletes, []string{"oneway"}; !reflect.DeepEqual(got, want) {
		t.Errorf("NoopDeletes = %v, want %v", got, want)
	}
	if c.Version != 3 {
		t.Errorf("Version = %d, want 3", c.Version)
	}
	if !c.HasEffect() {
		t.Error("HasEffect() = false, want true")
	}
}

func TestConflateNoEffect(t *testing.T) {
	current := map[string]string{"highway": "residential"}
	change := TagChange{
		Set:    map[string]string{"highway": "residential"},
		Delete: []string{"absent"},
	}
	c := Conflate(current, 1, change)
	if c.HasEffect() {
		t.Error("HasEffect() = true, want false for a wholly redundant/no-op change")
	}
}

func TestConflationResultingTags(t *testing.T) {
	current := map[string]string{"highway": "residential", "surface": "paved"}
	change := TagChange{
		Set:    map[string]string{"highway": "tertiary", "lit": "yes"},
		Delete: []string{"surface"},
	}
	c := Conflate(current, 1, change)

	got := c.ResultingTags(current)
	want := map[string]string{"highway": "tertiary", "lit": "yes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResultingTags() = %v, want %v", got, want)
	}
}
