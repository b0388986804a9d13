package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdCodeBlockRe  = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9_+-]+)")?>(.*?)</code></pre>`)
	mdInlineCodeRe = regexp.MustCompile(`<code>([^<]+)</code>`)
	mdHeadingRe    = regexp.MustCompile(`<h([1-6])(?: id="[^"]*")?>(.*?)</h[1-6]>`)
	mdStrongRe     = regexp.MustCompile(`<strong>(.*?)</strong>`)
	mdEmRe         = regexp.MustCompile(`<em>(.*?)</em>`)
	mdLinkRe       = regexp.MustCompile(`<a href="([^"]*)">(.*?)</a>`)
	mdListItemRe   = regexp.MustCompile(`<li>(.*?)</li>`)
	mdAnyTagRe     = regexp.MustCompile(`<[^>]+>`)
	mdBlankRunRe   = regexp.MustCompile(`\n{3,}`)
)

var mdEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#x27;", "'",
	"&#x60;", "`",
	"&nbsp;", " ",
)

// MarkdownRenderer turns assistant markdown into styled terminal text.
// Goldmark parses to HTML, and a small set of rewrites flattens that
// HTML into lipgloss-styled lines with chroma-highlighted code blocks.
type MarkdownRenderer struct {
	md        goldmark.Markdown
	formatter chroma.Formatter
	codeStyle *chroma.Style
	theme     Theme
}

func NewMarkdownRenderer(theme Theme) *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
			goldmark.WithExtensions(extension.GFM),
		),
		formatter: formatters.Get("terminal256"),
		codeStyle: styles.Get("monokai"),
		theme:     theme,
	}
}

// Render renders markdown to terminal text. On any parse failure the
// raw content is returned so a partially streamed message still shows.
func (r *MarkdownRenderer) Render(content string, width int) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.flatten(buf.String(), width)
}

func (r *MarkdownRenderer) flatten(htmlText string, width int) string {
	out := htmlText

	// Code blocks come out first so later rewrites cannot touch their
	// contents.
	var fenced []string
	out = mdCodeBlockRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdCodeBlockRe.FindStringSubmatch(m)
		code := mdEntities.Replace(parts[2])
		boxWidth := width - 6
		if boxWidth < 20 {
			boxWidth = 20
		}
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(r.theme.Border).
			Padding(0, 1).
			Width(boxWidth).
			Render(r.highlight(code, parts[1]))
		fenced = append(fenced, box)
		return fmt.Sprintf("\n\x00fence%d\x00\n", len(fenced)-1)
	})

	out = mdInlineCodeRe.ReplaceAllStringFunc(out, func(m string) string {
		code := mdEntities.Replace(mdInlineCodeRe.FindStringSubmatch(m)[1])
		return lipgloss.NewStyle().Foreground(r.theme.Accent).Render("`" + code + "`")
	})

	out = mdHeadingRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdHeadingRe.FindStringSubmatch(m)
		return lipgloss.NewStyle().Bold(true).Foreground(r.theme.Accent).Render(parts[2]) + "\n"
	})

	out = mdStrongRe.ReplaceAllStringFunc(out, func(m string) string {
		return lipgloss.NewStyle().Bold(true).Render(mdStrongRe.FindStringSubmatch(m)[1])
	})
	out = mdEmRe.ReplaceAllStringFunc(out, func(m string) string {
		return lipgloss.NewStyle().Italic(true).Render(mdEmRe.FindStringSubmatch(m)[1])
	})
	out = mdLinkRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := mdLinkRe.FindStringSubmatch(m)
		label := lipgloss.NewStyle().Underline(true).Foreground(r.theme.Accent).Render(parts[2])
		if parts[1] == "" || parts[1] == parts[2] {
			return label
		}
		return label + " (" + parts[1] + ")"
	})
	out = mdListItemRe.ReplaceAllStringFunc(out, func(m string) string {
		return "  • " + mdListItemRe.FindStringSubmatch(m)[1] + "\n"
	})

	out = strings.NewReplacer(
		"<p>", "", "</p>", "\n",
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
	).Replace(out)
	out = mdAnyTagRe.ReplaceAllString(out, "")
	out = mdEntities.Replace(out)

	for i, box := range fenced {
		out = strings.ReplaceAll(out, fmt.Sprintf("\x00fence%d\x00", i), box)
	}

	out = mdBlankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func (r *MarkdownRenderer) highlight(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.codeStyle, it); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
