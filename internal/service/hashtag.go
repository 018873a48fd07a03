package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const hashtagClass = "tiptap-tag"

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

type hashtagMatch struct {
	start, end int
	token      string
}

func isHashtagRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// findHashtags locates #token occurrences in plain text. The token class is
// greedy, so #tag never matches inside #tagging; a # glued to a preceding
// word character (C#, abc#def) or to a slash (https://host/#anchor) is not a
// hashtag.
func findHashtags(text string) []hashtagMatch {
	var matches []hashtagMatch
	for _, loc := range hashtagPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:loc[0]])
			if isHashtagRune(prev) || prev == '/' {
				continue
			}
		}
		matches = append(matches, hashtagMatch{start: loc[0], end: loc[1], token: text[loc[2]:loc[3]]})
	}
	return matches
}

func hashtagKey(token string, caseInsensitive bool) string {
	if caseInsensitive {
		return strings.ToLower(token)
	}
	return token
}

func isHashtagSpan(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Span {
		return false
	}
	class, _ := attr(n, "class")
	for _, c := range strings.Fields(class) {
		if c == hashtagClass {
			return true
		}
	}
	return false
}

// 这些元素内的 # 不是标签：链接锚点、代码、脚本
func skipsHashtags(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.A, atom.Code, atom.Pre, atom.Script, atom.Style, atom.Textarea:
		return true
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walkNode(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// collectHashtags returns distinct tokens in first-seen order. Tokens already
// wrapped in a hashtag span count as well.
func collectHashtags(root *html.Node, caseInsensitive bool) []string {
	tokens := []string{}
	seen := make(map[string]struct{})
	add := func(token string) {
		key := hashtagKey(token, caseInsensitive)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		tokens = append(tokens, token)
	}

	walkNode(root, func(n *html.Node) bool {
		switch {
		case isHashtagSpan(n):
			for _, m := range findHashtags(textContent(n)) {
				add(m.token)
			}
			return false
		case skipsHashtags(n):
			return false
		case n.Type == html.TextNode:
			for _, m := range findHashtags(n.Data) {
				add(m.token)
			}
		}
		return true
	})
	return tokens
}

// styleHashtags wraps every recognized token occurrence in
// <span class="tiptap-tag">#token</span>. Existing spans are left alone so
// repeated saves do not nest them.
func styleHashtags(root *html.Node, recognized map[string]struct{}, caseInsensitive bool) {
	walkNode(root, func(n *html.Node) bool {
		if isHashtagSpan(n) || skipsHashtags(n) {
			return false
		}
		if n.Type != html.TextNode || n.Parent == nil {
			return true
		}

		text := n.Data
		matches := findHashtags(text)
		last := 0
		var replacement []*html.Node
		for _, m := range matches {
			if _, ok := recognized[hashtagKey(m.token, caseInsensitive)]; !ok {
				continue
			}
			if m.start > last {
				replacement = append(replacement, &html.Node{Type: html.TextNode, Data: text[last:m.start]})
			}
			span := &html.Node{
				Type:     html.ElementNode,
				Data:     "span",
				DataAtom: atom.Span,
				Attr:     []html.Attribute{{Key: "class", Val: hashtagClass}},
			}
			span.AppendChild(&html.Node{Type: html.TextNode, Data: text[m.start:m.end]})
			replacement = append(replacement, span)
			last = m.end
		}
		if len(replacement) == 0 {
			return false
		}
		if last < len(text) {
			replacement = append(replacement, &html.Node{Type: html.TextNode, Data: text[last:]})
		}

		for _, r := range replacement {
			n.Parent.InsertBefore(r, n)
		}
		n.Parent.RemoveChild(n)
		return false
	})
}

// ExtractHashtags returns the distinct hashtag tokens of content.
func ExtractHashtags(content string, caseInsensitive bool) []string {
	if strings.TrimSpace(content) == "" {
		return []string{}
	}
	root, err := parseFragment(content)
	if err != nil {
		return []string{}
	}
	return collectHashtags(root, caseInsensitive)
}
