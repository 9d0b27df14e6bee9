package playlist

import (
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
)

// Variant is one selectable rendition of a master playlist (spec.md §3).
type Variant struct {
	Name       string
	Bandwidth  string
	Resolution string
	URI        string
}

// ParseVariants extracts the variant index from a MASTER document's
// lines. #EXT-X-STREAM-INF variants are decoded structurally via
// grafov/m3u8 (the teacher's own dependency, pkg/media/stream.go);
// #EXT-X-MEDIA TYPE=VIDEO entries — a merge spec.md mandates that no
// parsing library performs — are picked up by a direct scan of the raw
// lines. Variants are merged into one index, deduplicated by URI with
// first-occurrence-wins (spec.md §9 Open Question).
func ParseVariants(lines []string, baseURI string) []Variant {
	var ordered []Variant
	seen := make(map[string]bool)

	add := func(v Variant) {
		if v.URI == "" {
			return
		}
		if seen[v.URI] {
			return
		}
		seen[v.URI] = true
		ordered = append(ordered, v)
	}

	for _, v := range decodeStreamInfVariants(lines) {
		v.URI = Resolve(baseURI, v.URI)
		add(v)
	}
	for _, v := range scanMediaVariants(lines) {
		v.URI = Resolve(baseURI, v.URI)
		add(v)
	}

	return ordered
}

// decodeStreamInfVariants reconstructs a playlist reader from lines and
// hands it to grafov/m3u8.DecodeFrom, mirroring the teacher's
// GetAllVariants, which relies on the same library for master-playlist
// structure.
func decodeStreamInfVariants(lines []string) []Variant {
	doc := strings.NewReader(strings.Join(lines, "\n") + "\n")
	pl, listType, err := m3u8.DecodeFrom(doc, true)
	if err != nil || listType != m3u8.MASTER {
		return nil
	}
	master, ok := pl.(*m3u8.MasterPlaylist)
	if !ok {
		return nil
	}

	var out []Variant
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		bandwidth := ""
		if v.Bandwidth > 0 {
			bandwidth = strconv.FormatUint(uint64(v.Bandwidth), 10)
		}
		out = append(out, Variant{
			Name:       v.Name,
			Bandwidth:  bandwidth,
			Resolution: v.Resolution,
			URI:        v.URI,
		})
	}
	return out
}

// scanMediaVariants picks out #EXT-X-MEDIA lines with TYPE=VIDEO and a
// NAME and URI attribute, per spec.md §4.2.
func scanMediaVariants(lines []string) []Variant {
	var out []Variant
	for _, line := range lines {
		if !strings.HasPrefix(line, tagMedia) {
			continue
		}
		attrs := parseAttributes(line)
		if !strings.EqualFold(attrs["TYPE"], "VIDEO") {
			continue
		}
		uri := attrs["URI"]
		if uri == "" || attrs["NAME"] == "" {
			continue
		}
		out = append(out, Variant{
			Name: attrs["NAME"],
			URI:  uri,
		})
	}
	return out
}

// parseAttributes splits the comma-separated KEY=VALUE attribute list
// following a tag's colon, unquoting quoted values. It tolerates commas
// inside quoted values (e.g. RESOLUTION isn't quoted but CODECS lists
// are), matching spec.md §4.2's "quoted values are unquoted" rule.
func parseAttributes(line string) map[string]string {
	attrs := make(map[string]string)
	idx := strings.Index(line, ":")
	if idx < 0 {
		return attrs
	}
	rest := line[idx+1:]

	var pairs []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range rest {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			pairs = append(pairs, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		pairs = append(pairs, cur.String())
	}

	for _, pair := range pairs {
		eq := strings.Index(pair, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(pair[:eq])
		value := strings.TrimSpace(pair[eq+1:])
		value = strings.Trim(value, `"`)
		attrs[key] = value
	}
	return attrs
}
