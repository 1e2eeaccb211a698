package phone

import "golang.org/x/net/html"

const enhancedAttr = "data-phone-enhancement-applied"

// EnhanceNode masks every phone input under root (marked data-phone-input
// or data-uzbek-phone-input): the value is reformatted and an empty
// placeholder is filled. Inputs already enhanced are skipped. It returns
// how many inputs were enhanced.
func EnhanceNode(root *html.Node, defaultCode string) int {
	if root == nil {
		return 0
	}
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isPhoneInput(n) && enhance(n, defaultCode) {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return count
}

func isPhoneInput(n *html.Node) bool {
	_, a := getAttr(n, "data-phone-input")
	_, b := getAttr(n, "data-uzbek-phone-input")
	return a || b
}

func enhance(n *html.Node, defaultCode string) bool {
	if v, _ := getAttr(n, enhancedAttr); v == "true" {
		return false
	}
	setAttr(n, enhancedAttr, "true")
	code := defaultCode
	if own, ok := getAttr(n, "data-default-country-code"); ok && own != "" {
		code = own
	}
	if code == "" {
		code = DefaultCountryCode
	}
	if placeholder, _ := getAttr(n, "placeholder"); placeholder == "" {
		setAttr(n, "placeholder", Placeholder(code))
	}
	value, _ := getAttr(n, "value")
	setAttr(n, "value", Mask(value, code))
	return true
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}
