// Package gateway provides a gateway to the GitHub search API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/pr-habits/internal/domain"
)

// MaxPerPage is the largest page the GitHub search API will return.
const MaxPerPage = 100

// API kinds accepted by NewSearcher.
const (
	APIREST    = "rest"
	APIGraphQL = "graphql"
)

// PageRequest asks for one page of search results. An empty Cursor means the first page.
type PageRequest struct {
	Cursor  string
	PerPage int
}

// SearchPage is one page of search results. NextCursor is empty when the
// API reports no further pages.
type SearchPage struct {
	Items      []domain.SearchItem
	NextCursor string
}

// Searcher defines the behavior of a gateway for searching pull requests on GitHub.
type Searcher interface {
	SearchPullRequests(ctx context.Context, query string, page PageRequest) (*SearchPage, error)
}

// PullRequestQuery builds the search query for pull requests authored by user
// and created within the inclusive date range.
func PullRequestQuery(user string, r domain.DateRange) string {
	return fmt.Sprintf("author:%s is:pr created:%s..%s", user, r.StartDate, r.EndDate)
}

// NewHTTPClient returns an HTTP client that waits out secondary rate limits
// and authenticates with token when one is given.
func NewHTTPClient(token string) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(5*time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	if token == "" {
		return &http.Client{Transport: rateLimitWaiter}, nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}, nil
}

// NewSearcher is a constructor that creates the Searcher for the given API kind.
func NewSearcher(api, token string, logger *slog.Logger) (Searcher, error) {
	httpClient, err := NewHTTPClient(token)
	if err != nil {
		return nil, err
	}
	switch api {
	case "", APIREST:
		return &RESTSearcher{client: github.NewClient(httpClient), logger: logger}, nil
	case APIGraphQL:
		return &GraphQLSearcher{client: githubv4.NewClient(httpClient), logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported github api: %s", api)
	}
}

// RESTSearcher searches issues through the REST API. Cursors are page numbers.
type RESTSearcher struct {
	client *github.Client
	logger *slog.Logger
}

func (s *RESTSearcher) SearchPullRequests(ctx context.Context, query string, page PageRequest) (*SearchPage, error) {
	pageNum := 1
	if page.Cursor != "" {
		n, err := strconv.Atoi(page.Cursor)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page cursor %q", page.Cursor)
		}
		pageNum = n
	}

	opts := &github.SearchOptions{
		Sort:        "created",
		Order:       "desc",
		ListOptions: github.ListOptions{Page: pageNum, PerPage: clampPerPage(page.PerPage)},
	}
	s.logger.Debug("searching pull requests", "api", APIREST, "query", query, "page", pageNum)
	result, resp, err := s.client.Search.Issues(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues with REST API: %w", err)
	}

	out := &SearchPage{Items: make([]domain.SearchItem, 0, len(result.Issues))}
	for _, issue := range result.Issues {
		out.Items = append(out.Items, domain.SearchItem{
			Number:     issue.GetNumber(),
			Title:      issue.GetTitle(),
			Repository: repoFromURL(issue.GetRepositoryURL()),
			URL:        issue.GetHTMLURL(),
			CreatedAt:  issue.GetCreatedAt().Time,
		})
	}
	if resp != nil && resp.NextPage != 0 {
		out.NextCursor = strconv.Itoa(resp.NextPage)
	}
	return out, nil
}

// GraphQLSearcher searches through the GraphQL API. Cursors are opaque end cursors.
type GraphQLSearcher struct {
	client *githubv4.Client
	logger *slog.Logger
}

// pullRequestSearchQuery is the GraphQL search for pull request creation times.
type pullRequestSearchQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Nodes []struct {
			Typename    string `graphql:"__typename"`
			PullRequest struct {
				Number     int
				Title      string
				URL        string
				CreatedAt  githubv4.DateTime
				Repository struct {
					NameWithOwner string
				}
			} `graphql:"... on PullRequest"`
		}
	} `graphql:"search(query: $query, type: ISSUE, first: $first, after: $cursor)"`
}

func (s *GraphQLSearcher) SearchPullRequests(ctx context.Context, query string, page PageRequest) (*SearchPage, error) {
	variables := map[string]interface{}{
		"query":  githubv4.String(query + " sort:created-desc"),
		"first":  githubv4.Int(clampPerPage(page.PerPage)),
		"cursor": (*githubv4.String)(nil),
	}
	if page.Cursor != "" {
		variables["cursor"] = githubv4.NewString(githubv4.String(page.Cursor))
	}

	s.logger.Debug("searching pull requests", "api", APIGraphQL, "query", query, "cursor", page.Cursor)
	var q pullRequestSearchQuery
	if err := s.client.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL search query: %w", err)
	}

	out := &SearchPage{Items: make([]domain.SearchItem, 0, len(q.Search.Nodes))}
	for _, node := range q.Search.Nodes {
		if node.Typename != "" && node.Typename != "PullRequest" {
			continue
		}
		pr := node.PullRequest
		out.Items = append(out.Items, domain.SearchItem{
			Number:     pr.Number,
			Title:      pr.Title,
			Repository: pr.Repository.NameWithOwner,
			URL:        pr.URL,
			CreatedAt:  pr.CreatedAt.Time,
		})
	}
	if q.Search.PageInfo.HasNextPage {
		out.NextCursor = string(q.Search.PageInfo.EndCursor)
	}
	return out, nil
}

func clampPerPage(n int) int {
	if n <= 0 || n > MaxPerPage {
		return MaxPerPage
	}
	return n
}

// repoFromURL turns https://api.github.com/repos/owner/name into owner/name.
func repoFromURL(u string) string {
	if i := strings.Index(u, "/repos/"); i >= 0 {
		return u[i+len("/repos/"):]
	}
	return u
}
