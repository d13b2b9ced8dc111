package webcontent

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var whitespaceRun = regexp.MustCompile(`[ \t]{2,}`)
var blankLines = regexp.MustCompile(`\n{3,}`)

// Normalizer turns raw markup into plain readable text. Readability
// first; pages it refuses (landing pages, wikis with odd markup) fall
// back to a goquery text scrape.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize implements research.Normalizer.
func (n *Normalizer) Normalize(rawMarkup, sourceURL string) (string, error) {
	pageURL, err := url.Parse(sourceURL)
	if err != nil {
		pageURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(rawMarkup), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return tidy(article.TextContent), nil
	}

	text, gerr := scrapeText(rawMarkup)
	if gerr != nil {
		if err != nil {
			return "", fmt.Errorf("normalize: readability: %v, fallback: %w", err, gerr)
		}
		return "", fmt.Errorf("normalize: %w", gerr)
	}
	return text, nil
}

func scrapeText(rawMarkup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawMarkup))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer, noscript").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		return tidy(doc.Text()), nil
	}
	return tidy(body.Text()), nil
}

func tidy(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
