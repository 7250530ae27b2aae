package trim

import "strings"

// Block is a section of markdown text delimited by headings or blank-line runs.
type Block struct {
	Text      string
	StartLine int
	EndLine   int
}

// Blocks splits text on heading lines and double newlines.
func Blocks(text string) []Block {
	lines := strings.Split(text, "\n")
	var blocks []Block
	var current []string
	startLine := 1

	flush := func(endLine int) {
		if len(current) == 0 {
			return
		}
		t := strings.TrimSpace(strings.Join(current, "\n"))
		if t != "" {
			blocks = append(blocks, Block{Text: t, StartLine: startLine, EndLine: endLine})
		}
		current = nil
		startLine = endLine + 1
	}

	prevEmpty := false
	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") && len(current) > 0 {
			flush(lineNum - 1)
		}

		if trimmed == "" {
			if prevEmpty && len(current) > 0 {
				flush(lineNum - 1)
			}
			prevEmpty = true
			current = append(current, line)
			continue
		}
		prevEmpty = false
		current = append(current, line)
	}
	flush(len(lines))

	return blocks
}

// LastBlock drops the final block of a multi-block document, keeping the
// original text of everything before it. Single-block documents are left
// unchanged so a fallback trimmer can take over.
var LastBlock Trimmer = Func(func(_, content string) string {
	blocks := Blocks(content)
	if len(blocks) < 2 {
		return content
	}
	lines := strings.Split(content, "\n")
	last := blocks[len(blocks)-1]
	return strings.TrimRight(strings.Join(lines[:last.StartLine-1], "\n"), " \t\r\n")
})
