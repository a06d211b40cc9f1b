package jira

import "strings"

// adf is the minimal slice of the Atlassian Document Format the bot needs:
// plain-text descriptions and comments as paragraph nodes.
type adf struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// newADF wraps plain text into an ADF document, one paragraph per line block.
func newADF(text string) *adf {
	doc := &adf{Type: "doc", Version: 1}
	for _, para := range strings.Split(text, "\n\n") {
		node := adfNode{Type: "paragraph"}
		if para != "" {
			node.Content = []adfNode{{Type: "text", Text: para}}
		}
		doc.Content = append(doc.Content, node)
	}
	return doc
}

// text flattens an ADF document back to plain text, joining paragraph text
// nodes. Non-text nodes are skipped.
func (d *adf) text() string {
	if d == nil {
		return ""
	}
	var parts []string
	for _, node := range d.Content {
		if node.Type != "paragraph" {
			continue
		}
		var b strings.Builder
		for _, child := range node.Content {
			if child.Type == "text" {
				b.WriteString(child.Text)
			}
		}
		if b.Len() > 0 {
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, "\n\n")
}
