package osm

import "sort"

// TagChange is a caller's requested tag mutation for one element: keys in
// Set are added or updated, keys in Delete are removed if present.
type TagChange struct {
	OSMType string
	OSMID   int64
	Set     map[string]string
	Delete  []string
}

// Conflation is the per-element diff produced by comparing a TagChange
// against the element's current live tags.
type Conflation struct {
	OSMType     string
	OSMID       int64
	Version     int
	Added       map[string]string
	Updated     map[string][2]string // key -> [old, new]
	Redundant   []string             // requested but already matching; no-op
	Deleted     []string             // keys actually removed
	NoopDeletes []string             // delete requested for a key absent already
}

// Conflate compares change against the current tag set (at currentVersion)
// and classifies each requested mutation, per the submission pipeline's
// documented protocol: added if absent, updated if present with a different
// value, redundant if the value already matches; a delete is a no-op if the
// key is already absent.
func Conflate(current map[string]string, currentVersion int, change TagChange) Conflation {
	c := Conflation{
		OSMType: change.OSMType,
		OSMID:   change.OSMID,
		Version: currentVersion,
		Added:   map[string]string{},
		Updated: map[string][2]string{},
	}

	keys := make([]string, 0, len(change.Set))
	for k := range change.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		newVal := change.Set[k]
		oldVal, exists := current[k]
		switch {
		case !exists:
			c.Added[k] = newVal
		case oldVal == newVal:
			c.Redundant = append(c.Redundant, k)
		default:
			c.Updated[k] = [2]string{oldVal, newVal}
		}
	}

	deleteKeys := append([]string(nil), change.Delete...)
	sort.Strings(deleteKeys)
	for _, k := range deleteKeys {
		if _, exists := current[k]; exists {
			c.Deleted = append(c.Deleted, k)
		} else {
			c.NoopDeletes = append(c.NoopDeletes, k)
		}
	}

	return c
}

// ResultingTags applies a Conflation's effective changes to current,
// returning the tag set the upload should carry.
func (c Conflation) ResultingTags(current map[string]string) map[string]string {
	out := make(map[string]string, len(current)+len(c.Added))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range c.Added {
		out[k] = v
	}
	for k, pair := range c.Updated {
		out[k] = pair[1]
	}
	for _, k := range c.Deleted {
		delete(out, k)
	}
	return out
}

// HasEffect reports whether the conflation changes anything at all; a
// caller should skip a changeset entirely for an element whose requested
// changes are wholly redundant/no-op.
func (c Conflation) HasEffect() bool {
	return len(c.Added) > 0 || len(c.Updated) > 0 || len(c.Deleted) > 0
}
