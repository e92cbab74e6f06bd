package raster

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// gdalMetadataXML is the document GDAL stores in the GDAL_METADATA tag.
type gdalMetadataXML struct {
	XMLName xml.Name `xml:"GDALMetadata"`
	Items   []struct {
		Name   string `xml:"name,attr"`
		Sample string `xml:"sample,attr"`
		Role   string `xml:"role,attr"`
		Domain string `xml:"domain,attr"`
		Value  string `xml:",chardata"`
	} `xml:"Item"`
}

type bandMetadata struct {
	description string
	unit        string
	colorInterp string
	scale       *float64
	offset      *float64
	stats       map[string]float64
}

type gdalMetadata struct {
	domains map[string]map[string]string
	bands   map[int]*bandMetadata
}

func parseGDALMetadata(doc string) (*gdalMetadata, error) {
	var parsed gdalMetadataXML
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("raster: invalid GDAL_METADATA: %w", err)
	}

	md := &gdalMetadata{
		domains: map[string]map[string]string{},
		bands:   map[int]*bandMetadata{},
	}
	for _, item := range parsed.Items {
		value := strings.TrimSpace(item.Value)
		if item.Sample == "" {
			domain := strings.ToUpper(item.Domain)
			if md.domains[domain] == nil {
				md.domains[domain] = map[string]string{}
			}
			md.domains[domain][item.Name] = value
			continue
		}

		sample, err := strconv.Atoi(item.Sample)
		if err != nil || sample < 0 {
			continue
		}
		band := md.bands[sample]
		if band == nil {
			band = &bandMetadata{stats: map[string]float64{}}
			md.bands[sample] = band
		}
		band.set(item.Name, item.Role, value)
	}
	return md, nil
}

func (b *bandMetadata) set(name, role, value string) {
	switch strings.ToLower(role) {
	case "description":
		b.description = value
		return
	case "unittype":
		b.unit = value
		return
	case "colorinterp":
		b.colorInterp = strings.ToLower(value)
		return
	case "scale":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.scale = &v
		}
		return
	case "offset":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.offset = &v
		}
		return
	}
	if strings.HasPrefix(name, "STATISTICS_") {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.stats[strings.TrimPrefix(name, "STATISTICS_")] = v
		}
	}
}

func (b *bandMetadata) statistics() *Statistics {
	lo, okMin := b.stats["MINIMUM"]
	hi, okMax := b.stats["MAXIMUM"]
	mean, okMean := b.stats["MEAN"]
	stddev, okStd := b.stats["STDDEV"]
	if !okMin || !okMax || !okMean || !okStd {
		return nil
	}
	valid, ok := b.stats["VALID_PERCENT"]
	if !ok {
		valid = 100
	}
	return &Statistics{Minimum: lo, Maximum: hi, Mean: mean, StdDev: stddev, ValidPercent: valid}
}

func (md *gdalMetadata) apply(ds *Dataset) {
	for k, v := range md.domains[""] {
		ds.Tags[k] = v
	}
	for k, v := range md.domains["IMAGERY"] {
		ds.Imagery[k] = v
	}

	for sample, meta := range md.bands {
		if sample >= len(ds.Bands) {
			continue
		}
		band := &ds.Bands[sample]
		band.Description = meta.description
		band.Unit = meta.unit
		if meta.colorInterp != "" {
			band.ColorInterp = ColorInterp(meta.colorInterp)
		}
		if meta.scale != nil {
			band.Scale = *meta.scale
		}
		if meta.offset != nil {
			band.Offset = *meta.offset
		}
		band.Statistics = meta.statistics()
	}
}
