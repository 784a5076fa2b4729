package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// GetTextJoined walks the subtree collecting trimmed text nodes and
// joins the non-empty ones with sep. mirrors how server-rendered
// panels interleave labels, values and markup on separate lines.
func GetTextJoined(node *html.Node, sep string) string {
	var parts []string
	collectTextRecursive(node, &parts)
	return strings.Join(parts, sep)
}

func collectTextRecursive(node *html.Node, parts *[]string) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		trimmed := strings.TrimSpace(node.Data)
		if trimmed != "" {
			*parts = append(*parts, trimmed)
		}
		return
	}
	child := node.FirstChild
	for child != nil {
		collectTextRecursive(child, parts)
		child = child.NextSibling
	}
}

// LabelSibling finds the first text node matching label, then returns
// the element following the text node's parent. portals commonly render
// metadata as <label>Sender:</label><span>value</span> pairs, so the
// returned node holds the value for the label.
func LabelSibling(root *html.Node, label *regexp.Regexp) *html.Node {
	textNode := findTextNode(root, label)
	if textNode == nil || textNode.Parent == nil {
		return nil
	}
	return nextElementSibling(textNode.Parent)
}

func findTextNode(node *html.Node, pattern *regexp.Regexp) *html.Node {
	if node == nil {
		return nil
	}
	if node.Type == html.TextNode && pattern.MatchString(node.Data) {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findTextNode(child, pattern); found != nil {
			return found
		}
	}
	return nil
}

func nextElementSibling(node *html.Node) *html.Node {
	for sibling := node.NextSibling; sibling != nil; sibling = sibling.NextSibling {
		if sibling.Type == html.ElementNode {
			return sibling
		}
	}
	return nil
}

// HiddenFields collects the name/value pairs of every hidden input
// inside sel.
func HiddenFields(sel *goquery.Selection) map[string]string {
	fields := map[string]string{}
	sel.Find(`input[type=hidden]`).Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})
	return fields
}
