package osm

import "encoding/xml"

// Tag is a single OSM key/value pair.
type Tag struct {
	Key   string `xml:"k,attr"`
	Value string `xml:"v,attr"`
}

// Member is a relation member reference.
type Member struct {
	Type string `xml:"type,attr"`
	Ref  int64  `xml:"ref,attr"`
	Role string `xml:"role,attr"`
}

// Node is one OSM node element. Lat/Lon are pointers so a node fetched
// without coordinates (an unresolved placeholder) is distinguishable from
// one sitting at (0,0); the zero value of a bare float64 cannot make that
// distinction, which is exactly the missing-vs-empty ambiguity flagged
// against the teacher's upstream handling of optional attributes.
type Node struct {
	XMLName   xml.Name `xml:"node"`
	ID        int64    `xml:"id,attr"`
	Version   int      `xml:"version,attr,omitempty"`
	Changeset int64    `xml:"changeset,attr,omitempty"`
	Lat       *float64 `xml:"lat,attr"`
	Lon       *float64 `xml:"lon,attr"`
	Tags      []Tag    `xml:"tag"`
}

// Way is one OSM way element; NodeRefs preserves order, which matters for
// the line geometry it describes.
type Way struct {
	XMLName   xml.Name  `xml:"way"`
	ID        int64     `xml:"id,attr"`
	Version   int       `xml:"version,attr,omitempty"`
	Changeset int64     `xml:"changeset,attr,omitempty"`
	NodeRefs  []NodeRef `xml:"nd"`
	Tags      []Tag     `xml:"tag"`
}

// NodeRef is a <nd ref="..."/> child of a way.
type NodeRef struct {
	Ref int64 `xml:"ref,attr"`
}

// Relation is one OSM relation element.
type Relation struct {
	XMLName   xml.Name `xml:"relation"`
	ID        int64    `xml:"id,attr"`
	Version   int      `xml:"version,attr,omitempty"`
	Changeset int64    `xml:"changeset,attr,omitempty"`
	Members   []Member `xml:"member"`
	Tags      []Tag    `xml:"tag"`
}

// OSMDocument is the root of a GET /api/0.6/<type>/<id> or /api/0.6/map
// response: zero or more elements of each type.
type OSMDocument struct {
	XMLName   xml.Name   `xml:"osm"`
	Nodes     []Node     `xml:"node"`
	Ways      []Way      `xml:"way"`
	Relations []Relation `xml:"relation"`
}

// UserDetailsDoc is the root of a GET /api/0.6/user/details response: the
// identity behind the bearer token the request was authenticated with.
type UserDetailsDoc struct {
	XMLName xml.Name   `xml:"osm"`
	User    UserDetail `xml:"user"`
}

// UserDetail carries the fields the backend's authorisation model needs:
// the numeric OSM user id and display name.
type UserDetail struct {
	ID          int64  `xml:"id,attr"`
	DisplayName string `xml:"display_name,attr"`
}

// ChangesetEnvelope wraps the changeset creation/update payload: a single
// <changeset> element carrying tags.
type ChangesetEnvelope struct {
	XMLName xml.Name `xml:"osm"`
	Tags    []Tag    `xml:"changeset>tag"`
}

// OSMChange is the document POSTed to /changeset/<id>/upload: <create> for
// brand-new nodes, <modify> for conflated tag updates. Deletes are out of
// scope per the submission pipeline's documented protocol.
type OSMChange struct {
	XMLName  xml.Name     `xml:"osmChange"`
	Version  string       `xml:"version,attr"`
	Creates  *ChangeGroup `xml:"create"`
	Modifies *ChangeGroup `xml:"modify"`
}

// ChangeGroup holds the elements inside one <create> or <modify> block.
type ChangeGroup struct {
	Nodes     []Node     `xml:"node"`
	Ways      []Way      `xml:"way"`
	Relations []Relation `xml:"relation"`
}

// NewOSMChange assembles an osmChange document, omitting a <create> or
// <modify> block entirely when it would be empty rather than emitting an
// empty element tag.
func NewOSMChange(creates, modifies []Node) OSMChange {
	ch := OSMChange{Version: "0.6"}
	if len(creates) > 0 {
		ch.Creates = &ChangeGroup{Nodes: creates}
	}
	if len(modifies) > 0 {
		ch.Modifies = &ChangeGroup{Nodes: modifies}
	}
	return ch
}

// Encode renders the change as osmChange XML bytes.
func (c OSMChange) Encode() ([]byte, error) {
	return xml.MarshalIndent(c, "", "  ")
}

// DecodeDocument parses a GET /api/0.6/... response body.
func DecodeDocument(body []byte) (OSMDocument, error) {
	var doc OSMDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return OSMDocument{}, err
	}
	return doc, nil
}

// TagMap flattens a Tag slice into a key/value map.
func TagMap(tags []Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[t.Key] = t.Value
	}
	return out
}

// TagsFromMap renders a key/value map back to a sorted-by-caller Tag slice;
// callers that need deterministic ordering should sort keys first.
func TagsFromMap(keys []string, m map[string]string) []Tag {
	out := make([]Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, Tag{Key: k, Value: m[k]})
	}
	return out
}
