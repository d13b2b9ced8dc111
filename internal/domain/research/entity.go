package research

// Mode enum
type Mode string

const (
	ModeFullArticle Mode = "full_article"
	ModeSummaryOnly Mode = "summary_only"
)

// Hit is one raw search engine result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Result is a normalized research item fed into the model context.
// Content is plain text; an empty Content never reaches the prompt.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
