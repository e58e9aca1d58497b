package osm

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/maproulette/backend/internal/apperr"
)

const apiVersionPath = "/api/0.6"

// Client wraps an OAuth2-authenticated *http.Client against the OSM API
// v0.6, rate limited to stay under the upstream server's abuse threshold.
// The OAuth *handshake* (authorization code exchange) is out of scope; a
// Client is constructed from credentials a user has already granted.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient builds a Client from a live OAuth2 token. baseURL is typically
// "https://api.openstreetmap.org" or the dev/sandbox equivalent.
func NewClient(ctx context.Context, token *oauth2.Token, baseURL string, requestsPerSecond float64) *Client {
	ts := oauth2.StaticTokenSource(token)
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &Client{
		http:    oauth2.NewClient(ctx, ts),
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("osm: rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("osm: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/xml")
	}
	return c.http.Do(req)
}

// FetchElement GETs /api/0.6/<type>/<id> and returns the decoded document.
func (c *Client) FetchElement(ctx context.Context, osmType string, osmID int64) (OSMDocument, error) {
	path := fmt.Sprintf("%s/%s/%d", apiVersionPath, osmType, osmID)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return OSMDocument{}, fmt.Errorf("osm: fetch %s %d: %w", osmType, osmID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return OSMDocument{}, fmt.Errorf("osm: read fetch response: %w", err)
	}
	if err := statusToAppErr(resp.StatusCode, body); err != nil {
		return OSMDocument{}, err
	}
	return DecodeDocument(body)
}

// UserDetails GETs /api/0.6/user/details, the identity behind the token c
// was built from. The HTTP API uses this to turn a bearer token into the
// authz.Identity driving every access check on the request.
func (c *Client) UserDetails(ctx context.Context) (UserDetail, error) {
	resp, err := c.do(ctx, http.MethodGet, apiVersionPath+"/user/details", nil)
	if err != nil {
		return UserDetail{}, fmt.Errorf("osm: fetch user details: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return UserDetail{}, fmt.Errorf("osm: read user details response: %w", err)
	}
	if err := statusToAppErr(resp.StatusCode, body); err != nil {
		return UserDetail{}, err
	}

	var doc UserDetailsDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return UserDetail{}, fmt.Errorf("osm: decode user details: %w", err)
	}
	return doc.User, nil
}

// FetchMap GETs /api/0.6/map for the given bounding box, used to resolve a
// way's node references.
func (c *Client) FetchMap(ctx context.Context, minLon, minLat, maxLon, maxLat float64) (OSMDocument, error) {
	q := url.Values{}
	q.Set("bbox", fmt.Sprintf("%f,%f,%f,%f", minLon, minLat, maxLon, maxLat))
	resp, err := c.do(ctx, http.MethodGet, apiVersionPath+"/map?"+q.Encode(), nil)
	if err != nil {
		return OSMDocument{}, fmt.Errorf("osm: fetch map: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return OSMDocument{}, fmt.Errorf("osm: read map response: %w", err)
	}
	if err := statusToAppErr(resp.StatusCode, body); err != nil {
		return OSMDocument{}, err
	}
	return DecodeDocument(body)
}

// OpenChangeset PUTs /changeset/create and returns the new changeset id.
func (c *Client) OpenChangeset(ctx context.Context, comment string) (int64, error) {
	env := ChangesetEnvelope{Tags: []Tag{
		{Key: "created_by", Value: "MapRoulette"},
		{Key: "comment", Value: comment},
	}}
	body, err := xml.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("osm: encode changeset envelope: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/api/0.6/changeset/create", body)
	if err != nil {
		return 0, fmt.Errorf("osm: open changeset: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("osm: read open-changeset response: %w", err)
	}
	if err := statusToAppErr(resp.StatusCode, respBody); err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(string(bytes.TrimSpace(respBody)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("osm: parse changeset id %q: %w", respBody, err)
	}
	return id, nil
}

// UploadChangeset POSTs the osmChange document to /changeset/<id>/upload.
func (c *Client) UploadChangeset(ctx context.Context, changesetID int64, change OSMChange) ([]byte, error) {
	body, err := change.Encode()
	if err != nil {
		return nil, fmt.Errorf("osm: encode osmChange: %w", err)
	}

	path := fmt.Sprintf("/api/0.6/changeset/%d/upload", changesetID)
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("osm: upload changeset %d: %w", changesetID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("osm: read upload response: %w", err)
	}
	if err := statusToAppErr(resp.StatusCode, respBody); err != nil {
		return body, err
	}
	return body, nil
}

// CloseChangeset PUTs /changeset/<id>/close. The pipeline calls this on
// every path, success or failure, so changesets never leak open.
func (c *Client) CloseChangeset(ctx context.Context, changesetID int64) error {
	path := fmt.Sprintf("/api/0.6/changeset/%d/close", changesetID)
	resp, err := c.do(ctx, http.MethodPut, path, []byte{})
	if err != nil {
		return fmt.Errorf("osm: close changeset %d: %w", changesetID, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return statusToAppErr(resp.StatusCode, body)
}

// statusToAppErr maps the submission pipeline's documented response codes
// to the shared error taxonomy: 200 is success (nil), 409 is a conflicting
// edit, 401 is an expired/invalid credential, anything else is fatal.
func statusToAppErr(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusConflict:
		return apperr.Conflictf("osm: element changed since fetch: %s", compact(body))
	case status == http.StatusUnauthorized:
		return apperr.NotAuthorizedf("osm: credential rejected: %s", compact(body))
	default:
		return apperr.Fatalf(fmt.Errorf("osm: unexpected status %d", status), "%s", compact(body))
	}
}

func compact(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
