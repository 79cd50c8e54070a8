package analyzer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// CleanHTML strips a page down to the markup the classifier needs:
// structure, forms, and targeting attributes. Scripts, styles, and inline
// noise go away; iframes stay because captcha widgets live in them.
func CleanHTML(rawHTML string, maxBytes int) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var builder strings.Builder
	written := 0
	writeNode(doc, &builder, &written, maxBytes)
	return builder.String(), nil
}

func writeNode(n *html.Node, builder *strings.Builder, written *int, maxBytes int) bool {
	if *written >= maxBytes {
		return true
	}

	switch n.Type {
	case html.CommentNode:
		return false
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text == "" {
			return false
		}
		if *written+len(text) > maxBytes {
			text = text[:maxBytes-*written]
		}
		builder.WriteString(text)
		*written += len(text)
		return *written >= maxBytes
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if isNoiseElement(tag) {
			return false
		}

		builder.WriteString("<")
		builder.WriteString(tag)
		for _, attr := range n.Attr {
			if keepAttribute(tag, strings.ToLower(attr.Key)) {
				fmt.Fprintf(builder, ` %s="%s"`, attr.Key, html.EscapeString(attr.Val))
			}
		}
		builder.WriteString(">")
		*written += len(tag) + 2

		truncated := writeChildren(n, builder, written, maxBytes)

		if !isVoidElement(tag) {
			builder.WriteString("</")
			builder.WriteString(tag)
			builder.WriteString(">")
			*written += len(tag) + 3
		}
		return truncated
	default:
		return writeChildren(n, builder, written, maxBytes)
	}
}

func writeChildren(n *html.Node, builder *strings.Builder, written *int, maxBytes int) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if writeNode(c, builder, written, maxBytes) {
			return true
		}
	}
	return false
}

func isNoiseElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "svg", "embed", "object", "link", "meta":
		return true
	}
	return false
}

func isVoidElement(tag string) bool {
	switch tag {
	case "area", "base", "br", "col", "embed", "hr", "img",
		"input", "link", "meta", "param", "source", "track", "wbr":
		return true
	}
	return false
}

// keepAttribute keeps only attributes useful for selector targeting and
// field classification.
func keepAttribute(tag, attr string) bool {
	switch attr {
	case "id", "class", "role", "aria-label":
		return true
	}
	if strings.HasPrefix(attr, "data-") {
		return true
	}

	switch tag {
	case "input", "textarea", "select":
		switch attr {
		case "name", "type", "placeholder", "value", "required", "autocomplete":
			return true
		}
	case "form":
		return attr == "action" || attr == "method"
	case "button":
		return attr == "type" || attr == "name"
	case "label":
		return attr == "for"
	case "option":
		return attr == "value"
	case "a":
		return attr == "href"
	case "iframe":
		return attr == "src" || attr == "title"
	case "img":
		return attr == "alt"
	}
	return false
}
