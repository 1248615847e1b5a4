package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"
)

// DefaultWikipediaURL is the English Wikipedia REST root.
const DefaultWikipediaURL = "https://en.wikipedia.org"

// ErrPageNotFound is returned when no article exists under the exact title.
var ErrPageNotFound = errors.New("page not found")

// DisambiguationError is returned when the title resolves to a
// disambiguation page. Options lists the linked article titles in page order.
type DisambiguationError struct {
	Title   string
	Options []string
}

func (e *DisambiguationError) Error() string {
	return fmt.Sprintf("%q may refer to: %s", e.Title, strings.Join(e.Options, ", "))
}

// WikipediaService fetches article summaries through the Wikipedia REST API.
type WikipediaService struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewWikipediaService creates a client rooted at baseURL (DefaultWikipediaURL when empty).
func NewWikipediaService(baseURL, userAgent string, timeout time.Duration) *WikipediaService {
	if baseURL == "" {
		baseURL = DefaultWikipediaURL
	}
	if userAgent == "" {
		userAgent = "opsagent/1.0"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WikipediaService{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type pageSummary struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Summary returns the first n sentences of the article titled title. The
// title is used as given; no search or suggestion is applied.
func (s *WikipediaService) Summary(ctx context.Context, title string, sentences int) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("title is required")
	}

	body, err := s.get(ctx, "/api/rest_v1/page/summary/"+pageKey(title), "application/json")
	if err != nil {
		return "", err
	}
	var ps pageSummary
	if err := json.Unmarshal(body, &ps); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}

	if ps.Type == "disambiguation" {
		options, err := s.disambiguationOptions(ctx, title)
		if err != nil {
			return "", err
		}
		return "", &DisambiguationError{Title: title, Options: options}
	}
	return FirstSentences(ps.Extract, sentences), nil
}

func (s *WikipediaService) disambiguationOptions(ctx context.Context, title string) ([]string, error) {
	body, err := s.get(ctx, "/api/rest_v1/page/html/"+pageKey(title), "text/html")
	if err != nil {
		return nil, fmt.Errorf("fetch disambiguation page: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse disambiguation page: %w", err)
	}
	return ListedLinkTitles(doc), nil
}

func (s *WikipediaService) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPageNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("wikipedia returned HTTP %d", resp.StatusCode)
	}
	return body, nil
}

func pageKey(title string) string {
	return url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// ListedLinkTitles collects the title attribute of every wiki link that sits
// inside a list item, in document order and without duplicates.
func ListedLinkTitles(doc *html.Node) []string {
	var titles []string
	seen := make(map[string]bool)

	var walk func(n *html.Node, inItem bool)
	walk = func(n *html.Node, inItem bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "li":
				inItem = true
			case "a":
				if inItem {
					if t := attr(n, "title"); t != "" && !seen[t] && isArticleLink(n) {
						seen[t] = true
						titles = append(titles, t)
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inItem)
		}
	}
	walk(doc, false)
	return titles
}

func isArticleLink(n *html.Node) bool {
	rel := attr(n, "rel")
	if rel != "" && rel != "mw:WikiLink" {
		return false
	}
	return !strings.Contains(attr(n, "class"), "new")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// FirstSentences returns the first n sentences of text. n <= 0 returns the
// whole text trimmed.
func FirstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	count := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		count++
		if count == n {
			return string(runes[:i+1])
		}
	}
	return text
}
