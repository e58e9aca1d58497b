package osm

import "testing"

func TestMaterializeWay(t *testing.T) {
	way := Way{
		ID:       100,
		NodeRefs: []NodeRef{{Ref: 1}, {Ref: 2}, {Ref: 3}},
	}
	doc := OSMDocument{
		Nodes: []Node{
			{ID: 1},
			{ID: 3},
		},
	}

	nodes, missing := MaterializeWay(way, doc)

	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}
	if nodes[0].ID != 1 || nodes[1].ID != 3 {
		t.Errorf("nodes = %+v, want ids 1 and 3 in ref order", nodes)
	}
	if len(missing) != 1 || missing[0] != 2 {
		t.Errorf("missing = %v, want [2]", missing)
	}
}

func TestMaterializeWayAllPresent(t *testing.T) {
	way := Way{NodeRefs: []NodeRef{{Ref: 1}, {Ref: 2}}}
	doc := OSMDocument{Nodes: []Node{{ID: 1}, {ID: 2}}}

	nodes, missing := MaterializeWay(way, doc)
	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}
	if missing != nil {
		t.Errorf("missing = %v, want nil", missing)
	}
}

func TestLatestTagsOf(t *testing.T) {
	doc := OSMDocument{Nodes: []Node{{ID: 7, Version: 4, Tags: []Tag{{Key: "k", Value: "v"}}}}}

	tags, version, err := LatestTagsOf(doc, "node", 7)
	if err != nil {
		t.Fatalf("LatestTagsOf() error = %v", err)
	}
	if version != 4 {
		t.Errorf("version = %d, want 4", version)
	}
	if tags["k"] != "v" {
		t.Errorf("tags[k] = %q, want v", tags["k"])
	}

	if _, _, err := LatestTagsOf(doc, "node", 999); err == nil {
		t.Error("LatestTagsOf() for absent id: error = nil, want NotFound")
	}
}
