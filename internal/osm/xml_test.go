package osm

import (
	"encoding/xml"
	"strings"
	"testing"
)

func TestDecodeDocumentNode(t *testing.T) {
	body := []byte(`<osm>
		<node id="1" version="2" lat="51.5" lon="-0.1">
			<tag k="amenity" v="cafe"/>
		</node>
	</osm>`)

	doc, err := DecodeDocument(body)
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	if len(doc.Nodes) != 1 {
		t.Fatalf("len(Nodes) = %d, want 1", len(doc.Nodes))
	}
	n := doc.Nodes[0]
	if n.ID != 1 || n.Version != 2 {
		t.Errorf("node id/version = %d/%d, want 1/2", n.ID, n.Version)
	}
	if n.Lat == nil || *n.Lat != 51.5 {
		t.Errorf("Lat = %v, want 51.5", n.Lat)
	}
	if n.Lon == nil || *n.Lon != -0.1 {
		t.Errorf("Lon = %v, want -0.1", n.Lon)
	}
	if got := TagMap(n.Tags)["amenity"]; got != "cafe" {
		t.Errorf("tag amenity = %q, want cafe", got)
	}
}

func TestDecodeDocumentNodeMissingCoordinates(t *testing.T) {
	body := []byte(`<osm><node id="5" version="1"/></osm>`)
	doc, err := DecodeDocument(body)
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	n := doc.Nodes[0]
	if n.Lat != nil || n.Lon != nil {
		t.Errorf("Lat/Lon = %v/%v, want both nil for a node with no coordinate attrs", n.Lat, n.Lon)
	}
}

func TestDecodeDocumentWayPreservesNodeOrder(t *testing.T) {
	body := []byte(`<osm>
		<way id="10" version="1">
			<nd ref="3"/>
			<nd ref="1"/>
			<nd ref="2"/>
		</way>
	</osm>`)
	doc, err := DecodeDocument(body)
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	w := doc.Ways[0]
	want := []int64{3, 1, 2}
	if len(w.NodeRefs) != len(want) {
		t.Fatalf("len(NodeRefs) = %d, want %d", len(w.NodeRefs), len(want))
	}
	for i, ref := range w.NodeRefs {
		if ref.Ref != want[i] {
			t.Errorf("NodeRefs[%d] = %d, want %d", i, ref.Ref, want[i])
		}
	}
}

func TestNewOSMChangeOmitsEmptyGroups(t *testing.T) {
	lat, lon := 1.0, 2.0
	change := NewOSMChange([]Node{{ID: 1, Lat: &lat, Lon: &lon}}, nil)

	if change.Creates == nil {
		t.Fatal("Creates = nil, want non-nil when creates were passed")
	}
	if change.Modifies != nil {
		t.Error("Modifies != nil, want nil when no modifies were passed")
	}

	out, err := change.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "<create>") {
		t.Errorf("encoded output missing <create>: %s", s)
	}
	if strings.Contains(s, "<modify>") {
		t.Errorf("encoded output should omit <modify> entirely: %s", s)
	}
}

func TestChangesetEnvelopeEncoding(t *testing.T) {
	env := ChangesetEnvelope{Tags: []Tag{
		{Key: "created_by", Value: "MapRoulette"},
		{Key: "comment", Value: "fix tags"},
	}}
	out, err := xml.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `k="created_by"`) || !strings.Contains(s, `v="MapRoulette"`) {
		t.Errorf("encoded envelope missing created_by tag: %s", s)
	}
	if !strings.Contains(s, "<changeset>") {
		t.Errorf("encoded envelope missing <changeset> wrapper: %s", s)
	}
}

func TestTagMapRoundTrip(t *testing.T) {
	tags := []Tag{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
	m := TagMap(tags)
	back := TagsFromMap([]string{"a", "b"}, m)
	if len(back) != 2 || back[0].Key != "a" || back[1].Key != "b" {
		t.Errorf("TagsFromMap() = %+v, want keys in the order given", back)
	}
}
