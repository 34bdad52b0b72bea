package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/classifieds/backend/internal/feed"
	"github.com/classifieds/backend/internal/telemetry"
	"github.com/classifieds/backend/internal/util"
	"github.com/go-resty/resty/v2"
)

// feedClient talks to the feed endpoints
type feedClient struct {
	http *resty.Client
}

// pageResult is one fetched page plus the headers worth showing
type pageResult struct {
	Body         feed.Response
	Cache        string
	ETag         string
	ResponseTime string
	NotModified  bool
}

// apiError is a non-2xx answer from the server
type apiError struct {
	StatusCode int
	Code       string
	Message    string
	Field      string
}

func (e *apiError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%d] %s: %s (field: %s)", e.StatusCode, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

func newFeedClient() *feedClient {
	httpClient := telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{Timeout: requestTimeout()})

	c := resty.NewWithClient(httpClient)
	c.SetBaseURL(apiURL())
	c.SetHeader("User-Agent", "feedctl/0.1.0")
	c.SetHeader("Accept", "application/json")
	return &feedClient{http: c}
}

// Page fetches one feed page. etag, when set, is sent as If-None-Match.
func (fc *feedClient) Page(ctx context.Context, p feed.Params, etag string) (*pageResult, error) {
	req := fc.http.R().SetContext(ctx).SetQueryParams(queryParams(p))
	if etag != "" {
		req.SetHeader("If-None-Match", etag)
	}

	logger.Debug("fetching page", "params", req.QueryParam.Encode(), "etag", etag)
	resp, err := req.Get("/api/v1/feed/listings")
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}

	result := &pageResult{
		Cache:        resp.Header().Get("X-Cache"),
		ETag:         resp.Header().Get("ETag"),
		ResponseTime: resp.Header().Get("X-Response-Time"),
	}
	if resp.StatusCode() == 304 {
		result.NotModified = true
		return result, nil
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}

	if err := jsonAPI.Unmarshal(resp.Body(), &result.Body); err != nil {
		return nil, fmt.Errorf("decode feed page: %w", err)
	}
	return result, nil
}

// Meta fetches the cached meta summary
func (fc *feedClient) Meta(ctx context.Context) (*feed.Meta, error) {
	var meta feed.Meta
	resp, err := fc.http.R().SetContext(ctx).SetResult(&meta).Get("/api/v1/feed/listings/cached-meta")
	if err != nil {
		return nil, fmt.Errorf("request meta: %w", err)
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}
	return &meta, nil
}

func queryParams(p feed.Params) map[string]string {
	q := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			q[k] = v
		}
	}
	set("country", p.Country)
	set("region", p.Region)
	set("city", p.City)
	set("category", p.Category)
	set("subcategory", p.Subcategory)
	set("sort", p.Sort)
	set("cursor", p.Cursor)
	set("seller_id", p.SellerID)
	set("search", p.Search)
	if p.Limit > 0 {
		q["limit"] = strconv.Itoa(p.Limit)
	}
	return q
}

func parseError(resp *resty.Response) error {
	var body util.ErrorResponse
	if err := jsonAPI.Unmarshal(resp.Body(), &body); err == nil && body.Code != "" {
		return &apiError{StatusCode: resp.StatusCode(), Code: body.Code, Message: body.Message, Field: body.Field}
	}
	return &apiError{StatusCode: resp.StatusCode(), Code: "UNKNOWN", Message: string(resp.Body())}
}
