package cart

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// DefaultStylistsElementID is the id of the script tag the salon page embeds
// its service to stylist map in.
const DefaultStylistsElementID = "service-stylists-map"

// StylistsMap maps a service id to the stylists able to perform it.
type StylistsMap map[int64][]int64

// NormalizeStylistsMap converts decoded JSON into a StylistsMap. Keys that
// are not integers, values that are not lists and services without
// stylists are dropped.
func NormalizeStylistsMap(raw map[string]any) StylistsMap {
	out := make(StylistsMap, len(raw))
	for key, value := range raw {
		n, ok := toNumber(key)
		if !ok || n != float64(int64(n)) {
			continue
		}
		list, ok := value.([]any)
		if !ok {
			continue
		}
		stylists := NormalizeItems(list)
		if len(stylists) == 0 {
			continue
		}
		out[int64(n)] = stylists
	}
	return out
}

// ParseStylistsMap decodes a JSON object. Invalid input yields an empty map.
func ParseStylistsMap(data []byte) StylistsMap {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return StylistsMap{}
	}
	return NormalizeStylistsMap(raw)
}

// ReadStylistsMap finds the element with elementID in an HTML document and
// parses its text as a stylists map. A missing element or bad JSON yields an
// empty map.
func ReadStylistsMap(r io.Reader, elementID string) StylistsMap {
	if elementID == "" {
		elementID = DefaultStylistsElementID
	}
	doc, err := html.Parse(r)
	if err != nil {
		return StylistsMap{}
	}
	node := findByID(doc, elementID)
	if node == nil {
		return StylistsMap{}
	}
	return ParseStylistsMap([]byte(textContent(node)))
}

// Common returns the stylists shared by every service in serviceIDs, in the
// order of the first service's list.
func (m StylistsMap) Common(serviceIDs []int64) []int64 {
	if len(serviceIDs) == 0 {
		return []int64{}
	}
	common := append([]int64{}, m[serviceIDs[0]]...)
	for _, serviceID := range serviceIDs[1:] {
		if len(common) == 0 {
			break
		}
		allowed := m[serviceID]
		next := make([]int64, 0, len(common))
		for _, stylist := range common {
			if containsID(allowed, stylist) {
				next = append(next, stylist)
			}
		}
		common = next
	}
	return common
}

// HasCommon reports whether at least one stylist performs every service.
// An empty selection always qualifies.
func (m StylistsMap) HasCommon(serviceIDs []int64) bool {
	if len(serviceIDs) == 0 {
		return true
	}
	return len(m.Common(serviceIDs)) > 0
}

// ServiceIDs lists the services present in the map in ascending order.
func (m StylistsMap) ServiceIDs() []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
