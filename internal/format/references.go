package format

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/rcliao/agent-context/internal/knowledge"
)

var (
	markdown   = goldmark.New()
	labelRegex = regexp.MustCompile("^`([^`]+)`:$")
)

// References extracts the documents embedded in text by Render. A fenced
// code block counts only when the paragraph right before it is a path label.
// Later occurrences of a path win.
func References(source string) knowledge.Knowledge {
	if !strings.Contains(source, "`:") {
		return knowledge.Knowledge{}
	}
	src := []byte(source)
	doc := markdown.Parser().Parse(text.NewReader(src))

	docs := make(map[string]string)
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		block, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			continue
		}
		label, ok := block.PreviousSibling().(*ast.Paragraph)
		if !ok {
			continue
		}
		m := labelRegex.FindStringSubmatch(strings.TrimSpace(linesText(label, src)))
		if m == nil {
			continue
		}
		content := strings.TrimSuffix(linesText(block, src), "\n")
		docs[m[1]] = content
	}
	return knowledge.New(docs)
}

func linesText(node ast.Node, src []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		b.Write(segment.Value(src))
	}
	return b.String()
}
