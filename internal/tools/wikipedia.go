package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cortexai/opsagent/internal/service"
)

// WikiSummarizer returns the opening sentences of an article.
type WikiSummarizer interface {
	Summary(ctx context.Context, title string, sentences int) (string, error)
}

const (
	wikiSentences  = 2
	wikiMaxOptions = 5
)

// WikipediaTool looks up article summaries. Answers, including "not found"
// and disambiguation replies, are cached per title when cache is non-nil.
func WikipediaTool(wiki WikiSummarizer, cache *service.TTLCache) Tool {
	lookup := func(ctx context.Context, title string) (string, error) {
		summary, err := wiki.Summary(ctx, title, wikiSentences)
		var de *service.DisambiguationError
		switch {
		case err == nil:
			if summary == "" {
				return fmt.Sprintf("The page for '%s' has no summary.", title), nil
			}
			return summary, nil
		case errors.Is(err, service.ErrPageNotFound):
			return fmt.Sprintf("Could not find a page for '%s'.", title), nil
		case errors.As(err, &de):
			opts := de.Options
			if len(opts) > wikiMaxOptions {
				opts = opts[:wikiMaxOptions]
			}
			return fmt.Sprintf("Ambiguous query. Options: [%s]", strings.Join(opts, ", ")), nil
		default:
			return "", err
		}
	}

	return Tool{
		Name:        "Wikipedia",
		Description: "Use to look up a term on Wikipedia and get a summary.",
		Execute: func(ctx context.Context, input string) (string, error) {
			title := strings.TrimSpace(input)
			if title == "" {
				return "", errors.New("a search term is required")
			}
			if cache == nil {
				return lookup(ctx, title)
			}
			return cache.GetOrFetch(ctx, strings.ToLower(title), func(ctx context.Context) (string, error) {
				return lookup(ctx, title)
			})
		},
	}
}
