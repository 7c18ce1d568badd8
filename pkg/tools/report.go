package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/registry"
	"github.com/gomutex/godocx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// SaveReportToolName is the name the model uses to save the final report.
const SaveReportToolName = "save_report"

// ReportTitle is the title heading of every saved document.
const ReportTitle = "Research Report"

// SaveReportDefinition describes the save_report tool to the model.
func SaveReportDefinition() domain.Tool {
	return domain.Tool{
		Name:        SaveReportToolName,
		Description: "Saves the final research report to a Word document (.docx). The content is Markdown.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": map[string]any{
					"type":        "string",
					"description": "The name of the file (e.g. 'bitcoin_analysis.docx').",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The full Markdown content of the report.",
				},
			},
			"required": []string{"filename", "content"},
		},
	}
}

// ReportWriter saves reports into a directory.
type ReportWriter struct {
	Dir string
}

// NewReportWriter creates a writer for dir ("" means the working directory).
func NewReportWriter(dir string) *ReportWriter {
	if dir == "" {
		dir = "."
	}
	return &ReportWriter{Dir: dir}
}

// Handler is the save_report tool function.
func (w *ReportWriter) Handler(_ context.Context, args map[string]any) (string, error) {
	var in struct {
		Filename string `mapstructure:"filename"`
		Content  string `mapstructure:"content"`
	}
	if err := registry.Decode(args, &in); err != nil {
		return "", err
	}
	path, err := w.Save(in.Filename, in.Content)
	if err != nil {
		return "", fmt.Errorf("saving file: %w", err)
	}
	return "File saved successfully: " + path, nil
}

// Save renders markdown to a .docx file and returns the written path.
// The filename is reduced to its base name and always ends in .docx.
func (w *ReportWriter) Save(filename, markdown string) (string, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, name)
	if err := SaveDocx(path, markdown); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// SanitizeFilename keeps the base name of filename, replaces characters that
// are unsafe on common filesystems and forces the .docx extension.
func SanitizeFilename(filename string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if base == "/" || base == "." {
		return "", errors.New("filename is empty")
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r < 32, strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, base)
	base = strings.Trim(base, ". ")
	if base == "" {
		return "", errors.New("filename is empty")
	}
	return base + ".docx", nil
}

// docRun is a span of text with uniform formatting.
type docRun struct {
	text string
	bold bool
}

// docParagraph is one paragraph of the document. Style is a style ID of the
// default template, or "" for normal text.
type docParagraph struct {
	style string
	runs  []docRun
}

// parseMarkdown flattens markdown into document paragraphs: headings (levels
// deeper than 3 become Heading3), bullet items, code lines (plain paragraphs)
// and paragraphs with bold runs.
func parseMarkdown(src []byte) []docParagraph {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	var out []docParagraph
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch v := c.(type) {
			case *ast.Heading:
				level := min(max(v.Level, 1), 3)
				out = appendParagraph(out, fmt.Sprintf("Heading%d", level), collectRuns(v, src, false))
			case *ast.Paragraph, *ast.TextBlock:
				style := ""
				if _, ok := c.Parent().(*ast.ListItem); ok {
					style = "ListBullet"
				}
				out = appendParagraph(out, style, collectRuns(c, src, false))
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				lines := c.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					line := strings.TrimRight(string(seg.Value(src)), "\r\n")
					out = appendParagraph(out, "", []docRun{{text: line}})
				}
			case *ast.HTMLBlock, *ast.ThematicBreak:
			default:
				walk(c)
			}
		}
	}
	walk(doc)
	return out
}

func appendParagraph(out []docParagraph, style string, runs []docRun) []docParagraph {
	if len(runs) == 0 {
		return out
	}
	return append(out, docParagraph{style: style, runs: runs})
}

func collectRuns(n ast.Node, src []byte, bold bool) []docRun {
	var runs []docRun
	add := func(s string, b bool) {
		if s == "" {
			return
		}
		if l := len(runs); l > 0 && runs[l-1].bold == b {
			runs[l-1].text += s
			return
		}
		runs = append(runs, docRun{text: s, bold: b})
	}
	var walk func(n ast.Node, bold bool)
	walk = func(n ast.Node, bold bool) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch v := c.(type) {
			case *ast.Text:
				s := string(v.Segment.Value(src))
				if v.SoftLineBreak() || v.HardLineBreak() {
					s += " "
				}
				add(s, bold)
			case *ast.String:
				add(string(v.Value), bold)
			case *ast.Emphasis:
				walk(v, bold || v.Level >= 2)
			case *ast.AutoLink:
				add(string(v.URL(src)), bold)
			case *ast.RawHTML:
			default:
				walk(c, bold)
			}
		}
	}
	walk(n, bold)
	if l := len(runs); l > 0 {
		runs[l-1].text = strings.TrimRight(runs[l-1].text, " ")
	}
	return runs
}

// SaveDocx writes the markdown report to path as a Word document: the title
// heading, then one paragraph per block with bold runs kept.
func SaveDocx(path, markdown string) error {
	document, err := godocx.NewDocument()
	if err != nil {
		return err
	}
	if _, err := document.AddHeading(ReportTitle, 0); err != nil {
		return err
	}
	for _, p := range parseMarkdown([]byte(markdown)) {
		if level, ok := headingLevel(p.style); ok {
			if _, err := document.AddHeading(plainText(p.runs), level); err != nil {
				return err
			}
			continue
		}
		para := document.AddParagraph("")
		if p.style != "" {
			para.Style(p.style)
		}
		for _, r := range p.runs {
			run := para.AddText(r.text)
			if r.bold {
				run.Bold(true)
			}
		}
	}
	return document.SaveTo(path)
}

func headingLevel(style string) (uint, bool) {
	switch style {
	case "Heading1":
		return 1, true
	case "Heading2":
		return 2, true
	case "Heading3":
		return 3, true
	}
	return 0, false
}

func plainText(runs []docRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.text)
	}
	return b.String()
}
