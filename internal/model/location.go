package model

import (
	"fmt"
	"strings"
)

// TransferMode says how a data product is reached.
type TransferMode string

const (
	// ModeCloud reads the product from an object storage bucket.
	ModeCloud TransferMode = "cloud"
	// ModeDirect fetches the access URL over HTTP(S).
	ModeDirect TransferMode = "direct"
)

// CloudAddress is the resolved location of an object in cloud storage.
type CloudAddress struct {
	Provider string `json:"provider"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Region   string `json:"region"`
}

func (a CloudAddress) String() string {
	return fmt.Sprintf("%s:%s/%s (region %s)", a.Provider, a.Bucket, a.Key, a.Region)
}

// CloudOverride redirects a single operation to another bucket or region.
// Nil fields keep the value parsed from the row.
type CloudOverride struct {
	Bucket *string `json:"bucket,omitempty"`
	Region *string `json:"region,omitempty"`
}

// NoOverride is the zero override.
var NoOverride = CloudOverride{}

// OverrideBucket returns an override that replaces only the bucket.
func OverrideBucket(bucket string) CloudOverride {
	return CloudOverride{Bucket: &bucket}
}

// OverrideRegion returns an override that replaces only the region.
func OverrideRegion(region string) CloudOverride {
	return CloudOverride{Region: &region}
}

// Apply returns a copy of addr with the override's non-nil fields applied.
// Blank override values are ignored.
func (o CloudOverride) Apply(addr CloudAddress) CloudAddress {
	if o.Bucket != nil && strings.TrimSpace(*o.Bucket) != "" {
		addr.Bucket = strings.TrimSpace(*o.Bucket)
	}
	if o.Region != nil && strings.TrimSpace(*o.Region) != "" {
		addr.Region = strings.TrimSpace(*o.Region)
	}
	return addr
}

// IsZero reports whether the override changes nothing.
func (o CloudOverride) IsZero() bool {
	return o.Bucket == nil && o.Region == nil
}

// ProbeResult is the outcome of a metadata-only remote request.
type ProbeResult struct {
	Size  int64 `json:"size"`
	Found bool  `json:"found"`
}

// Summary is a short description of a catalog row and how it resolves.
type Summary struct {
	ObsID          string        `json:"obs_id"`
	TargetName     string        `json:"target_name"`
	InstrumentName string        `json:"instrument_name"`
	AccessFormat   string        `json:"access_format,omitempty"`
	Mode           TransferMode  `json:"mode,omitempty"`
	Address        *CloudAddress `json:"address,omitempty"`
	URL            string        `json:"url,omitempty"`
	RawCloudAccess string        `json:"raw_cloud_access,omitempty"`
	Diagnostic     string        `json:"diagnostic,omitempty"`
}

// String renders the summary as an indented block for terminals.
func (s Summary) String() string {
	var b strings.Builder
	line := strings.Repeat("-", 40)
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "obs_id:      %s\n", orDash(s.ObsID))
	fmt.Fprintf(&b, "target:      %s\n", orDash(s.TargetName))
	fmt.Fprintf(&b, "instrument:  %s\n", orDash(s.InstrumentName))
	if s.AccessFormat != "" {
		fmt.Fprintf(&b, "format:      %s\n", s.AccessFormat)
	}
	fmt.Fprintf(&b, "mode:        %s\n", orDash(string(s.Mode)))
	if s.Address != nil {
		fmt.Fprintf(&b, "provider:    %s\n", s.Address.Provider)
		fmt.Fprintf(&b, "bucket:      %s\n", s.Address.Bucket)
		fmt.Fprintf(&b, "key:         %s\n", s.Address.Key)
		fmt.Fprintf(&b, "region:      %s\n", s.Address.Region)
	}
	if s.URL != "" {
		fmt.Fprintf(&b, "url:         %s\n", s.URL)
	}
	if s.Diagnostic != "" {
		if s.RawCloudAccess != "" {
			fmt.Fprintf(&b, "cloud_access: %s\n", s.RawCloudAccess)
		}
		fmt.Fprintf(&b, "warning:     %s\n", s.Diagnostic)
	}
	b.WriteString(line)
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
