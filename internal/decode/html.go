package decode

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

// Pre-compiled regexes to strip non-content markup before conversion.
var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// HTMLDecoder converts HTML sources to GitHub-flavored Markdown.
type HTMLDecoder struct {
	converter *md.Converter
}

// NewHTMLDecoder creates an HTML decoder.
func NewHTMLDecoder() *HTMLDecoder {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &HTMLDecoder{converter: converter}
}

// Name returns the decoder engine id.
func (d *HTMLDecoder) Name() string { return "html-to-markdown" }

// Formats lists the extensions this decoder serves.
func (d *HTMLDecoder) Formats() []string { return []string{"html", "htm"} }

// Decode converts HTML to Markdown, prefixing the page title as a heading
// when the body does not already start with one.
func (d *HTMLDecoder) Decode(data []byte, _ string) (*Result, error) {
	cleaned := scriptRe.ReplaceAllString(string(data), "")
	cleaned = styleRe.ReplaceAllString(cleaned, "")

	markdown, err := d.converter.ConvertString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("convert html: %w", err)
	}

	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n")
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, fmt.Errorf("no text content")
	}

	if title := extractTitle(data); title != "" && !strings.HasPrefix(markdown, "# ") {
		markdown = "# " + title + "\n\n" + markdown
	}
	markdown += "\n"

	return &Result{Text: markdown}, nil
}

// extractTitle pulls the <title> text out of an HTML document.
func extractTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			walk(c)
		}
	}
	walk(doc)
	return title
}
