package service

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseFragment parses post content as the children of a <body> element,
// which is how the rich-text editor produces it. The returned body holds the
// parsed nodes so that top-level text can be replaced in place.
func parseFragment(content string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return body, nil
}

// renderFragment serializes the children of root, the inverse of parseFragment.
func renderFragment(root *html.Node) (string, error) {
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// walkNode visits n depth-first; children are skipped when visit returns false.
func walkNode(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		// 先记住下一个兄弟节点，visit 可能会替换当前节点
		next := c.NextSibling
		walkNode(c, visit)
		c = next
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// imageNodes collects img elements with a non-blank src.
func imageNodes(root *html.Node) []*html.Node {
	var images []*html.Node
	walkNode(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			if src, ok := attr(n, "src"); ok && strings.TrimSpace(src) != "" {
				images = append(images, n)
			}
		}
		return true
	})
	return images
}

// ExtractImageURLs returns every <img src> in document order. An img whose
// src is missing, empty or only whitespace references no blob and is
// skipped. Malformed markup is parsed best-effort; empty input yields an
// empty slice.
func ExtractImageURLs(content string) []string {
	if strings.TrimSpace(content) == "" {
		return []string{}
	}
	root, err := parseFragment(content)
	if err != nil {
		return []string{}
	}

	urls := []string{}
	for _, img := range imageNodes(root) {
		src, _ := attr(img, "src")
		urls = append(urls, src)
	}
	return urls
}
