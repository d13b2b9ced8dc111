package research

import "context"

// Searcher port (interface untuk web search API)
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Hit, error)
}

// Fetcher port for retrieving raw page markup
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Normalizer port: raw markup -> plain readable text
type Normalizer interface {
	Normalize(rawMarkup, sourceURL string) (string, error)
}
