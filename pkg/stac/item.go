package stac

import (
	"encoding/json"
	"time"
)

// Version is the STAC specification version written by this package.
const Version = "1.0.0"

// Item represents a STAC Item (GeoJSON Feature) with support for foreign members.
type Item struct {
	Type       string            `json:"type,omitempty"`
	Version    string            `json:"stac_version"`
	Extensions []string          `json:"stac_extensions,omitempty"`
	Id         string            `json:"id"`
	Geometry   any               `json:"geometry"`
	Bbox       []float64         `json:"bbox,omitempty"`
	Properties map[string]any    `json:"properties"`
	Links      []*Link           `json:"links"`
	Assets     map[string]*Asset `json:"assets"`
	Collection string            `json:"collection,omitempty"`

	// AdditionalFields holds foreign members not defined in the STAC spec.
	AdditionalFields map[string]any `json:"-"`
}

var knownItemFields = map[string]bool{
	"type": true, "stac_version": true, "stac_extensions": true,
	"id": true, "geometry": true, "bbox": true, "properties": true,
	"links": true, "assets": true, "collection": true,
}

// NewItem returns an empty Feature with the given id.
func NewItem(id string) *Item {
	return &Item{
		Type:       "Feature",
		Version:    Version,
		Id:         id,
		Properties: map[string]any{},
		Links:      []*Link{},
		Assets:     map[string]*Asset{},
	}
}

// AddExtension records an extension schema URI. Empty and duplicate URIs are ignored.
func (item *Item) AddExtension(uri string) {
	if uri == "" {
		return
	}
	for _, existing := range item.Extensions {
		if existing == uri {
			return
		}
	}
	item.Extensions = append(item.Extensions, uri)
}

// SetDatetime sets the "datetime" property. A nil time writes JSON null,
// which STAC requires when start_datetime and end_datetime are used instead.
func (item *Item) SetDatetime(t *time.Time) {
	if item.Properties == nil {
		item.Properties = map[string]any{}
	}
	if t == nil {
		item.Properties["datetime"] = nil
		return
	}
	item.Properties["datetime"] = FormatDatetime(*t)
}

// AddLink appends a link to the item.
func (item *Item) AddLink(link *Link) {
	item.Links = append(item.Links, link)
}

// UnmarshalJSON implements custom unmarshaling to capture foreign members.
func (item *Item) UnmarshalJSON(data []byte) error {
	type itemAlias Item
	var aux itemAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*item = Item(aux)

	fields, err := foreignMembers(data, knownItemFields)
	if err != nil {
		return err
	}
	item.AdditionalFields = fields
	return nil
}

// MarshalJSON implements custom marshaling to include foreign members.
func (item Item) MarshalJSON() ([]byte, error) {
	type itemAlias Item
	return mergeForeignMembers(itemAlias(item), item.AdditionalFields)
}
