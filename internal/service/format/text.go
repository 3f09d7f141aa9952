package format

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// sentence is a candidate unit with its position in the answer.
type sentence struct {
	value string
	index int
}

// plainBlocks parses src as Markdown and returns the plain text of every
// leaf text block (paragraphs, headings, list item text) in document order.
// Code blocks, raw HTML and images are dropped; links keep their text.
func plainBlocks(md goldmark.Markdown, src []byte) []string {
	doc := md.Parser().Parse(text.NewReader(src))

	var (
		blocks []string
		cur    strings.Builder
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock, ast.KindRawHTML, ast.KindImage:
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock:
			if entering {
				cur.Reset()
			} else if block := collapseSpace(cur.String()); block != "" {
				blocks = append(blocks, block)
			}
		case ast.KindText:
			if entering {
				t := n.(*ast.Text)
				cur.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					cur.WriteByte(' ')
				}
			}
		case ast.KindString:
			if entering {
				cur.Write(n.(*ast.String).Value)
			}
		case ast.KindAutoLink:
			if entering {
				cur.Write(n.(*ast.AutoLink).Label(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

// plainInline strips markup from a single line.
func plainInline(md goldmark.Markdown, line string) string {
	return strings.Join(plainBlocks(md, []byte(line)), " ")
}

// collapseSpace folds every whitespace run (ideographic space included)
// into one ASCII space and trims the ends.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

func isEastAsianTerminal(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

// isCloser reports characters that stay attached to the preceding sentence.
func isCloser(r rune) bool {
	switch r {
	case '」', '』', '）', ')', '】', '”', '’', '"', '\'':
		return true
	}
	return isTerminal(r)
}

// splitSentences cuts block after East Asian terminals unconditionally and
// after Latin terminals only when whitespace or the end of the block
// follows. Closing quotes and brackets stay with their sentence.
func splitSentences(block string) []string {
	var (
		out   []string
		start int
	)
	for i := 0; i < len(block); {
		r, size := utf8.DecodeRuneInString(block[i:])
		i += size
		if !isTerminal(r) {
			continue
		}
		end := i
		for end < len(block) {
			next, n := utf8.DecodeRuneInString(block[end:])
			if !isCloser(next) {
				break
			}
			end += n
		}
		if !isEastAsianTerminal(r) && end < len(block) {
			next, _ := utf8.DecodeRuneInString(block[end:])
			if !unicode.IsSpace(next) {
				i = end
				continue
			}
		}
		if s := strings.TrimSpace(block[start:end]); s != "" {
			out = append(out, s)
		}
		start, i = end, end
	}
	if s := strings.TrimSpace(block[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// extractSentences numbers the sentences of every block consecutively.
func extractSentences(blocks []string) []sentence {
	var out []sentence
	for _, b := range blocks {
		for _, s := range splitSentences(b) {
			out = append(out, sentence{value: s, index: len(out)})
		}
	}
	return out
}

// bulletValue returns the text after a list marker, or false when line is
// not a list line. "-", "*", "N." and "N)" need whitespace after them;
// "•" and "・" do not.
func bulletValue(line string) (string, bool) {
	for _, marker := range []string{"•", "・"} {
		if strings.HasPrefix(line, marker) {
			return line[len(marker):], true
		}
	}

	rest := ""
	switch {
	case strings.HasPrefix(line, "-"), strings.HasPrefix(line, "*"):
		rest = line[1:]
	default:
		digits := 0
		for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
			digits++
		}
		if digits == 0 || digits == len(line) || (line[digits] != '.' && line[digits] != ')') {
			return "", false
		}
		rest = line[digits+1:]
	}
	r, _ := utf8.DecodeRuneInString(rest)
	if rest == "" || !unicode.IsSpace(r) {
		return "", false
	}
	return rest, true
}

// extractBullets scans the raw answer line by line, outside fenced code,
// for list lines and returns their markup-free text.
func extractBullets(md goldmark.Markdown, raw string) []sentence {
	var (
		out     []sentence
		inFence bool
	)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		value, ok := bulletValue(line)
		if !ok {
			continue
		}
		if value = plainInline(md, strings.TrimSpace(value)); value != "" {
			out = append(out, sentence{value: value, index: len(out)})
		}
	}
	return out
}

func dedupe(items []sentence) []sentence {
	seen := make(map[string]struct{}, len(items))
	out := make([]sentence, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.value]; ok {
			continue
		}
		seen[item.value] = struct{}{}
		out = append(out, item)
	}
	return out
}
