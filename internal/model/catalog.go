package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CatalogRow is one record from an archive query result describing a single
// observation or data product. Only the fields the locator needs are kept;
// anything else the archive returns is dropped when the row is built.
type CatalogRow struct {
	AccessURL      string `json:"access_url"`
	AccessFormat   string `json:"access_format,omitempty"`
	CloudAccess    string `json:"cloud_access,omitempty"`
	ObsID          string `json:"obs_id,omitempty"`
	TargetName     string `json:"target_name,omitempty"`
	InstrumentName string `json:"instrument_name,omitempty"`
}

// ColumnMap names the source field that feeds each CatalogRow field.
// Archives disagree on naming; MAST labels the access URL "accessURL".
type ColumnMap struct {
	AccessURL      string
	AccessFormat   string
	CloudAccess    string
	ObsID          string
	TargetName     string
	InstrumentName string
}

// DefaultColumns returns the column names used by HEASARC-style SIA results.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		AccessURL:      "access_url",
		AccessFormat:   "access_format",
		CloudAccess:    "cloud_access",
		ObsID:          "obs_id",
		TargetName:     "target_name",
		InstrumentName: "instrument_name",
	}
}

// WithAccessURL returns a copy of m reading the access URL from column.
// An empty column keeps the current mapping.
func (m ColumnMap) WithAccessURL(column string) ColumnMap {
	if column = strings.TrimSpace(column); column != "" {
		m.AccessURL = column
	}
	return m
}

// fallback names tried when the configured access format column is absent.
var accessFormatAliases = []string{"imageFormat", "format"}

// RowFromFields builds a CatalogRow from a loosely typed record such as a
// decoded JSON object. Missing columns become empty strings; structured values
// (for example a JSON cloud_access object) are kept as their JSON text.
func RowFromFields(fields map[string]any, cols ColumnMap) CatalogRow {
	row := CatalogRow{
		AccessURL:      fieldString(fields, cols.AccessURL),
		AccessFormat:   fieldString(fields, cols.AccessFormat),
		CloudAccess:    fieldString(fields, cols.CloudAccess),
		ObsID:          fieldString(fields, cols.ObsID),
		TargetName:     fieldString(fields, cols.TargetName),
		InstrumentName: fieldString(fields, cols.InstrumentName),
	}
	if row.AccessFormat == "" {
		for _, alias := range accessFormatAliases {
			if v := fieldString(fields, alias); v != "" {
				row.AccessFormat = v
				break
			}
		}
	}
	return row
}

func fieldString(fields map[string]any, name string) string {
	if name == "" {
		return ""
	}
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case json.RawMessage:
		return strings.TrimSpace(string(t))
	case json.Number:
		return t.String()
	case float64:
		// decoded JSON numbers; %v would turn 1000000 into 1e+06
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
