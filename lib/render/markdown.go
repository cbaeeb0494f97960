// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/x/ansi"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// The parser configuration never changes and goldmark parsers are
// safe to share; per-call state lives in Parse.
var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(
			extension.Strikethrough,
			extension.Linkify,
			extension.TaskList,
		))
	})
	return markdownParser
}

// Markdown renders a comment body for the terminal, wrapped to width.
// Soft line breaks become spaces so hard-wrapped text reflows.
func (r *Renderer) Markdown(input string, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	document := getMarkdownParser().Parser().Parse(text.NewReader(source))

	walker := &markdownWalker{renderer: r, source: source, width: width}
	ast.Walk(document, walker.walk)
	return strings.TrimRight(walker.output.String(), "\n")
}

// markdownWalker accumulates inline content per block and wraps it
// when the block closes.
type markdownWalker struct {
	renderer *Renderer
	source   []byte
	width    int

	output strings.Builder
	inline strings.Builder

	prefix        string
	prefixes      []string
	pendingBullet string

	bold, italic, strike int
	lists                []listState

	trailingNewlines int
}

type listState struct {
	ordered bool
	counter int
	tight   bool
}

func (w *markdownWalker) currentWidth() int {
	return max(10, w.width-ansi.StringWidth(w.prefix))
}

func (w *markdownWalker) pushPrefix(prefix string) {
	w.prefixes = append(w.prefixes, prefix)
	w.prefix += prefix
}

func (w *markdownWalker) popPrefix() {
	if len(w.prefixes) == 0 {
		return
	}
	top := w.prefixes[len(w.prefixes)-1]
	w.prefixes = w.prefixes[:len(w.prefixes)-1]
	w.prefix = w.prefix[:len(w.prefix)-len(top)]
}

func (w *markdownWalker) inTightList() bool {
	return len(w.lists) > 0 && w.lists[len(w.lists)-1].tight
}

func (w *markdownWalker) write(s string) {
	if s == "" {
		return
	}
	w.output.WriteString(s)
	trimmed := strings.TrimRight(s, "\n")
	if trimmed == "" {
		w.trailingNewlines += len(s)
	} else {
		w.trailingNewlines = len(s) - len(trimmed)
	}
}

func (w *markdownWalker) ensureNewline() {
	if w.trailingNewlines < 1 {
		w.write("\n")
	}
}

func (w *markdownWalker) ensureBlankLine() {
	if w.output.Len() == 0 {
		return
	}
	for w.trailingNewlines < 2 {
		w.write("\n")
	}
}

func (w *markdownWalker) linePrefix() string {
	if w.pendingBullet != "" {
		bullet := w.pendingBullet
		w.pendingBullet = ""
		return bullet
	}
	return w.prefix
}

func (w *markdownWalker) withPrefixes(content string) string {
	lines := strings.Split(content, "\n")
	for index, line := range lines {
		if index == 0 {
			lines[index] = w.linePrefix() + line
		} else {
			lines[index] = w.prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func (w *markdownWalker) flushInline() {
	content := w.inline.String()
	w.inline.Reset()
	if content == "" {
		return
	}
	w.write(w.withPrefixes(ansi.Wrap(content, w.currentWidth(), " ,.;-+|")))
	w.ensureNewline()
	if !w.inTightList() {
		w.ensureBlankLine()
	}
}

func (w *markdownWalker) styled(content string) string {
	style := w.renderer.style().Foreground(w.renderer.theme.NormalText)
	if w.bold > 0 {
		style = style.Bold(true)
	}
	if w.italic > 0 {
		style = style.Italic(true)
	}
	if w.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

func (w *markdownWalker) lines(node ast.Node) string {
	var content strings.Builder
	segments := node.Lines()
	for index := 0; index < segments.Len(); index++ {
		segment := segments.At(index)
		content.Write(segment.Value(w.source))
	}
	return content.String()
}

func (w *markdownWalker) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			w.inline.Reset()
		} else {
			w.flushInline()
		}

	case ast.KindHeading:
		if entering {
			w.inline.Reset()
			return ast.WalkContinue, nil
		}
		content := ansi.Strip(w.inline.String())
		w.inline.Reset()
		if content != "" {
			heading := w.renderer.style().Bold(true).Foreground(w.renderer.theme.HeaderForeground).Render(content)
			w.ensureBlankLine()
			w.write(w.withPrefixes(heading))
			w.ensureNewline()
			w.ensureBlankLine()
		}

	case ast.KindFencedCodeBlock:
		if entering {
			fenced := node.(*ast.FencedCodeBlock)
			w.codeBlock(w.lines(node), string(fenced.Language(w.source)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			w.codeBlock(w.lines(node), "")
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			w.pushPrefix("│ ")
		} else {
			w.popPrefix()
			w.ensureBlankLine()
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			w.lists = append(w.lists, listState{ordered: list.IsOrdered(), counter: list.Start, tight: list.IsTight})
		} else {
			w.lists = w.lists[:len(w.lists)-1]
			if !w.inTightList() {
				w.ensureBlankLine()
			}
		}

	case ast.KindListItem:
		if entering {
			top := &w.lists[len(w.lists)-1]
			bullet := "- "
			if top.ordered {
				bullet = fmt.Sprintf("%d. ", top.counter)
				top.counter++
			}
			w.pendingBullet = w.prefix + bullet
			w.pushPrefix(strings.Repeat(" ", len(bullet)))
		} else {
			w.popPrefix()
			w.ensureNewline()
		}

	case ast.KindThematicBreak:
		if entering {
			rule := w.renderer.style().Foreground(w.renderer.theme.BorderColor).
				Render(strings.Repeat("─", w.currentWidth()))
			w.ensureBlankLine()
			w.write(w.withPrefixes(rule))
			w.ensureNewline()
			w.ensureBlankLine()
		}

	case ast.KindHTMLBlock:
		if entering {
			if stripped := strings.TrimSpace(stripHTMLTags(w.lines(node))); stripped != "" {
				w.write(w.withPrefixes(w.renderer.faint(stripped)))
				w.ensureNewline()
				w.ensureBlankLine()
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			w.inline.WriteString(w.styled(string(textNode.Segment.Value(w.source))))
			switch {
			case textNode.HardLineBreak():
				w.inline.WriteString("\n")
			case textNode.SoftLineBreak():
				w.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			w.inline.WriteString(w.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		delta := -1
		if entering {
			delta = 1
		}
		if node.(*ast.Emphasis).Level >= 2 {
			w.bold += delta
		} else {
			w.italic += delta
		}

	case extast.KindStrikethrough:
		if entering {
			w.strike++
		} else {
			w.strike--
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				switch child := child.(type) {
				case *ast.Text:
					code.Write(child.Segment.Value(w.source))
				case *ast.String:
					code.Write(child.Value)
				}
			}
			w.inline.WriteString(w.renderer.faint(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			w.inline.WriteString(w.inlineContent(node))
			if destination := string(link.Destination); destination != "" {
				w.inline.WriteString(" " + w.renderer.faint("("+destination+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(w.source))
			w.inline.WriteString(w.renderer.style().Foreground(w.renderer.theme.LinkForeground).Render(url))
		}

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			w.inline.WriteString(w.renderer.faint("[" + w.inlineContent(node) + "] (" + string(image.Destination) + ")"))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			var html strings.Builder
			for index := 0; index < raw.Segments.Len(); index++ {
				segment := raw.Segments.At(index)
				html.Write(segment.Value(w.source))
			}
			if stripped := stripHTMLTags(html.String()); stripped != "" {
				w.inline.WriteString(w.renderer.faint(stripped))
			}
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				w.inline.WriteString(w.renderer.style().Foreground(w.renderer.theme.StatusColors[3]).Render("[x]") + " ")
			} else {
				w.inline.WriteString(w.styled("[ ] "))
			}
		}
	}
	return ast.WalkContinue, nil
}

// inlineContent renders node's children into a string without
// disturbing the surrounding inline buffer or style counters.
func (w *markdownWalker) inlineContent(node ast.Node) string {
	saved := w.inline.String()
	bold, italic, strike := w.bold, w.italic, w.strike

	w.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, w.walk)
	}
	result := w.inline.String()

	w.inline.Reset()
	w.inline.WriteString(saved)
	w.bold, w.italic, w.strike = bold, italic, strike
	return result
}

func (w *markdownWalker) codeBlock(code, language string) {
	highlighted := w.renderer.highlight(code, language)
	w.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		w.write(w.linePrefix() + "  " + line)
		w.ensureNewline()
	}
	w.ensureBlankLine()
}

// highlight syntax-highlights code with chroma. Without a language,
// without color, or on a chroma error the code is shown faint.
func (r *Renderer) highlight(code, language string) string {
	if language == "" || !r.colored() {
		return r.faint(code)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return r.faint(code)
	}
	return buffer.String()
}

func stripHTMLTags(html string) string {
	var result strings.Builder
	inTag := false
	for _, character := range html {
		switch {
		case character == '<':
			inTag = true
		case character == '>':
			inTag = false
		case !inTag:
			result.WriteRune(character)
		}
	}
	return result.String()
}
