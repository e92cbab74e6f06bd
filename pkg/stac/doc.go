// Package stac provides types for writing SpatioTemporal Asset Catalog (STAC) Items.
//
// Item, Asset and Link support "foreign members" - additional JSON fields not
// defined in the core STAC specification. Extension fields such as
// "proj:epsg" or "raster:bands" live in the AdditionalFields map and are
// merged into the encoded object.
//
// Example usage:
//
//	item := stac.NewItem("scene")
//	item.AddExtension(stac.ProjectionExtension)
//	item.Assets["data"] = &stac.Asset{Href: "scene.tif", Type: string(stac.MediaTypeCOG)}
//	data, err := json.Marshal(item)
package stac
