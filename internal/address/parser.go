// Package address turns the free-text cloud_access metadata of a catalog row
// into a bucket/key/region tuple.
package address

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"datalocator/internal/model"
)

// DefaultPattern matches "provider:bucket/key" with an optional
// "?region=<name>" suffix, e.g. "aws:heasarc-bucket/obs123.fits?region=us-east-2".
const DefaultPattern = `^(?P<provider>[a-z][a-z0-9]*):(?P<bucket>[^/?]+)/(?P<key>[^?]+?)(?:\?region=(?P<region>[a-z0-9-]+))?$`

// DefaultRegion is used when neither the metadata nor an override names a region.
const DefaultRegion = "us-east-1"

var (
	// ErrResolution means the row's location metadata cannot be turned into an address.
	ErrResolution = errors.New("cannot resolve cloud address")
	// ErrMissingAccessURL means the row has no access URL at all.
	ErrMissingAccessURL = fmt.Errorf("%w: access url is empty", ErrResolution)
)

// Parser resolves cloud_access strings. It holds no per-row state and is safe
// for concurrent use.
type Parser struct {
	pattern       *regexp.Regexp
	defaultRegion string
	providers     []string
}

// Option configures a Parser.
type Option func(*Parser)

// WithDefaultRegion sets the region used when the metadata omits one.
func WithDefaultRegion(region string) Option {
	return func(p *Parser) {
		if region = strings.TrimSpace(region); region != "" {
			p.defaultRegion = region
		}
	}
}

// WithProviders sets the provider names accepted from the JSON form, in order
// of preference.
func WithProviders(names ...string) Option {
	return func(p *Parser) {
		if len(names) > 0 {
			p.providers = names
		}
	}
}

// NewParser compiles pattern, which must define the named groups provider,
// bucket and key; region is optional. An empty pattern selects DefaultPattern.
func NewParser(pattern string, opts ...Option) (*Parser, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile cloud access pattern: %w", err)
	}
	names := re.SubexpNames()
	for _, group := range []string{"provider", "bucket", "key"} {
		if re.SubexpIndex(group) < 0 {
			return nil, fmt.Errorf("cloud access pattern %q lacks group %q (have %v)", pattern, group, names[1:])
		}
	}
	p := &Parser{
		pattern:       re,
		defaultRegion: DefaultRegion,
		providers:     []string{"aws"},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// MustParser is NewParser for patterns known at compile time.
func MustParser(pattern string, opts ...Option) *Parser {
	p, err := NewParser(pattern, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultRegion reports the region applied when metadata omits one.
func (p *Parser) DefaultRegion() string { return p.defaultRegion }

// Resolve parses raw and applies ov. It returns (nil, nil) when raw carries
// no cloud metadata, and an error wrapping ErrResolution when raw is present
// but malformed.
func (p *Parser) Resolve(raw string, ov model.CloudOverride) (*model.CloudAddress, error) {
	raw = strings.TrimSpace(raw)
	if isEmpty(raw) {
		return nil, nil
	}

	var (
		addr model.CloudAddress
		err  error
	)
	switch {
	case strings.HasPrefix(raw, "{"):
		addr, err = p.parseJSON(raw)
	case strings.HasPrefix(raw, "s3://"):
		addr, err = parseS3URI(raw)
	default:
		addr, err = p.parsePattern(raw)
	}
	if err != nil {
		return nil, err
	}
	if addr.Region == "" {
		addr.Region = p.defaultRegion
	}
	addr = ov.Apply(addr)
	return &addr, nil
}

func isEmpty(raw string) bool {
	switch raw {
	case "", "{}", "null", "--", "None":
		return true
	}
	return false
}

func (p *Parser) parsePattern(raw string) (model.CloudAddress, error) {
	m := p.pattern.FindStringSubmatch(raw)
	if m == nil {
		return model.CloudAddress{}, fmt.Errorf("%w: %q does not match %s", ErrResolution, raw, p.pattern)
	}
	group := func(name string) string {
		if i := p.pattern.SubexpIndex(name); i >= 0 {
			return m[i]
		}
		return ""
	}
	addr := model.CloudAddress{
		Provider: strings.ToLower(group("provider")),
		Bucket:   group("bucket"),
		Key:      strings.TrimPrefix(group("key"), "/"),
		Region:   group("region"),
	}
	if addr.Bucket == "" || addr.Key == "" {
		return model.CloudAddress{}, fmt.Errorf("%w: %q has empty bucket or key", ErrResolution, raw)
	}
	return addr, nil
}

func parseS3URI(raw string) (model.CloudAddress, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return model.CloudAddress{}, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return model.CloudAddress{}, fmt.Errorf("%w: %q has empty bucket or key", ErrResolution, raw)
	}
	return model.CloudAddress{
		Provider: "aws",
		Bucket:   u.Host,
		Key:      key,
		Region:   u.Query().Get("region"),
	}, nil
}

// jsonLocation is one provider entry of the JSON cloud_access form, e.g.
// {"aws": {"bucket_name": "dh-fornaxdev", "key": "FTP/...", "region": "us-east-1"}}.
type jsonLocation struct {
	BucketName string `json:"bucket_name"`
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	Path       string `json:"path"`
	Region     string `json:"region"`
}

func (p *Parser) parseJSON(raw string) (model.CloudAddress, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return model.CloudAddress{}, fmt.Errorf("%w: decode json: %v", ErrResolution, err)
	}

	provider := ""
	for _, name := range p.providers {
		if _, ok := entries[name]; ok {
			provider = name
			break
		}
	}
	if provider == "" {
		found := make([]string, 0, len(entries))
		for name := range entries {
			found = append(found, name)
		}
		sort.Strings(found)
		return model.CloudAddress{}, fmt.Errorf("%w: no supported provider in %v", ErrResolution, found)
	}

	var loc jsonLocation
	if err := json.Unmarshal(entries[provider], &loc); err != nil {
		return model.CloudAddress{}, fmt.Errorf("%w: decode %s entry: %v", ErrResolution, provider, err)
	}
	addr := model.CloudAddress{
		Provider: provider,
		Bucket:   firstNonEmpty(loc.BucketName, loc.Bucket),
		Key:      strings.TrimPrefix(firstNonEmpty(loc.Key, loc.Path), "/"),
		Region:   loc.Region,
	}
	if addr.Bucket == "" || addr.Key == "" {
		return model.CloudAddress{}, fmt.Errorf("%w: %s entry has empty bucket or key", ErrResolution, provider)
	}
	return addr, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
