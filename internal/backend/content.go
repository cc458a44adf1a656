package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// The content API has been deployed under several path casings.
var blogCollections = []string{"Blogs", "blogs", "blog", "Blog"}

// ErrNoContent is returned when no blog path variant answered.
var ErrNoContent = errors.New("content api unavailable")

// ProxyResponse is an upstream response passed through verbatim.
type ProxyResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// BlogPosts fetches the post list, forwarding the query string.
func (c *Client) BlogPosts(ctx context.Context, query url.Values) (*ProxyResponse, error) {
	candidates := make([]string, 0, len(blogCollections))
	for _, col := range blogCollections {
		candidates = append(candidates, c.contentPath(col, query))
	}
	return c.firstAvailable(ctx, candidates)
}

// BlogPost fetches a single post by slug.
func (c *Client) BlogPost(ctx context.Context, slug string) (*ProxyResponse, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("blog post: slug is required")
	}
	candidates := make([]string, 0, len(blogCollections))
	for _, col := range blogCollections {
		candidates = append(candidates, c.contentPath(col+"/slug/"+url.PathEscape(slug), nil))
	}
	return c.firstAvailable(ctx, candidates)
}

func (c *Client) contentPath(path string, query url.Values) string {
	u := c.contentURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// firstAvailable tries each candidate in order, moving on after a 404 or a
// transport error. The last upstream response is returned if none succeeded.
func (c *Client) firstAvailable(ctx context.Context, candidates []string) (*ProxyResponse, error) {
	var last *ProxyResponse
	var lastErr error
	for _, endpoint := range candidates {
		res, err := c.get(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug().Err(err).Str("url", endpoint).Msg("content candidate failed")
			lastErr = err
			continue
		}
		if res.StatusCode == http.StatusNotFound {
			last = res
			continue
		}
		return res, nil
	}
	if last != nil {
		return last, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoContent, lastErr)
	}
	return nil, ErrNoContent
}

func (c *Client) get(ctx context.Context, endpoint string) (*ProxyResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	return &ProxyResponse{StatusCode: resp.StatusCode, ContentType: ct, Body: body}, nil
}
