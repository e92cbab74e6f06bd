package stac

import "encoding/json"

// Asset represents a STAC Asset with support for additional fields.
type Asset struct {
	Type        string   `json:"type,omitempty"`
	Href        string   `json:"href"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Created     string   `json:"created,omitempty"`
	Roles       []string `json:"roles,omitempty"`

	// AdditionalFields holds foreign members from extensions (e.g., "eo:bands").
	AdditionalFields map[string]any `json:"-"`
}

var knownAssetFields = map[string]bool{
	"type": true, "href": true, "title": true, "description": true,
	"created": true, "roles": true,
}

// Set stores an extension field on the asset.
func (asset *Asset) Set(key string, value any) {
	if asset.AdditionalFields == nil {
		asset.AdditionalFields = make(map[string]any)
	}
	asset.AdditionalFields[key] = value
}

// UnmarshalJSON implements custom unmarshaling to capture foreign members.
func (asset *Asset) UnmarshalJSON(data []byte) error {
	type assetAlias Asset
	var aux assetAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*asset = Asset(aux)

	fields, err := foreignMembers(data, knownAssetFields)
	if err != nil {
		return err
	}
	asset.AdditionalFields = fields
	return nil
}

// MarshalJSON implements custom marshaling to include foreign members.
func (asset Asset) MarshalJSON() ([]byte, error) {
	type assetAlias Asset
	return mergeForeignMembers(assetAlias(asset), asset.AdditionalFields)
}
