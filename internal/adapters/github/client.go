// Package github implements the activity feed on top of the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v61/github"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app/poller"
	"github.com/dkeye/Presence/internal/domain"
)

const eventsPerPage = 30

type Client struct {
	base *github.Client
}

// NewClient builds a feed client. An empty baseURL targets api.github.com.
func NewClient(httpClient *http.Client, baseURL string) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := github.NewClient(httpClient)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse feed base url: %w", err)
		}
		c.BaseURL = u
	}
	return &Client{base: c}, nil
}

func (c *Client) with(cred domain.Credential) *github.Client {
	return c.base.WithAuthToken(cred.Token)
}

// Events fetches the public event page of cred.Login. A non-empty etag is
// sent as If-None-Match.
func (c *Client) Events(ctx context.Context, cred domain.Credential, etag string) (poller.Page, error) {
	gh := c.with(cred)
	path := fmt.Sprintf("users/%s/events?per_page=%d", url.PathEscape(cred.Login), eventsPerPage)
	req, err := gh.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return poller.Page{Outcome: poller.OutcomeTransient}, fmt.Errorf("build events request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	var events []*github.Event
	resp, err := gh.Do(ctx, req, &events)
	if outcome, failed := classifyResponse(resp, err); failed {
		return poller.Page{Outcome: outcome}, err
	}

	page := poller.Page{
		Outcome: poller.OutcomeOK,
		ETag:    resp.Header.Get("ETag"),
		Items:   make([]poller.FeedItem, 0, len(events)),
	}
	for _, ev := range events {
		if ev == nil {
			continue
		}
		page.Items = append(page.Items, toFeedItem(ev))
	}
	return page, nil
}

// classifyResponse maps a go-github result onto a poll outcome. It reports
// false only for a decoded 2xx response.
func classifyResponse(resp *github.Response, err error) (poller.Outcome, bool) {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return poller.OutcomeRateLimited, true
	case resp == nil || resp.Response == nil:
		return poller.OutcomeTransient, true
	}
	switch resp.StatusCode {
	case http.StatusNotModified:
		return poller.OutcomeNotModified, true
	case http.StatusUnauthorized:
		return poller.OutcomeUnauthorized, true
	case http.StatusForbidden, http.StatusTooManyRequests:
		return poller.OutcomeRateLimited, true
	}
	if err != nil {
		return poller.OutcomeTransient, true
	}
	return poller.OutcomeOK, false
}

func toFeedItem(ev *github.Event) poller.FeedItem {
	it := poller.FeedItem{
		ID:        ev.GetID(),
		Type:      ev.GetType(),
		Repo:      ev.GetRepo().GetName(),
		CreatedAt: ev.GetCreatedAt().Time,
	}
	payload, err := ev.ParsePayload()
	if err != nil {
		it.ParseErr = err
		return it
	}
	switch p := payload.(type) {
	case *github.PushEvent:
		it.Before = p.GetBefore()
		it.Head = p.GetHead()
	case *github.PullRequestEvent:
		it.Action = p.GetAction()
		it.Merged = p.GetPullRequest().GetMerged()
		it.Title = p.GetPullRequest().GetTitle()
	case *github.IssuesEvent:
		it.Action = p.GetAction()
		it.Title = p.GetIssue().GetTitle()
	case *github.PullRequestReviewEvent:
		it.Action = p.GetAction()
		it.ReviewState = p.GetReview().GetState()
		it.Title = p.GetPullRequest().GetTitle()
	}
	return it
}

// Compare resolves the commits between base and head of repo ("owner/name").
func (c *Client) Compare(ctx context.Context, cred domain.Credential, repo, base, head string) (poller.Comparison, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return poller.Comparison{}, fmt.Errorf("invalid repository %q", repo)
	}
	cmp, _, err := c.with(cred).Repositories.CompareCommits(ctx, owner, name, base, head, nil)
	if err != nil {
		log.Debug().Err(err).Str("module", "adapters.github").Str("repo", repo).Msg("compare commits")
		return poller.Comparison{}, fmt.Errorf("compare %s %s...%s: %w", repo, base, head, err)
	}
	out := poller.Comparison{Total: cmp.GetTotalCommits()}
	for _, rc := range cmp.Commits {
		out.Messages = append(out.Messages, rc.GetCommit().GetMessage())
	}
	return out, nil
}
