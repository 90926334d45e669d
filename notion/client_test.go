package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{Token: "secret_test"}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]ClientOption{WithBaseURL(srv.URL), WithRetries(3, time.Millisecond)}, opts...)
	return NewClient(opts...)
}

func TestQueryDatabase(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/databases/db1/query", r.URL.Path)
		assert.Equal(t, "Bearer secret_test", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultVersion, r.Header.Get("Notion-Version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"page_size":100}`, string(body))

		_, _ = io.WriteString(w, `{
			"object": "list",
			"results": [{
				"id": "p1",
				"url": "https://www.notion.so/p1",
				"properties": {
					"Tags": {"id": "t", "type": "multi_select", "multi_select": []},
					"Name": {"id": "title", "type": "title", "title": [{"type": "text", "text": {"content": "Intro"}, "plain_text": "Intro"}]}
				}
			}],
			"has_more": false
		}`)
	})

	pages, err := client.QueryDatabase(context.Background(), testCreds, "db1")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "p1", pages[0].ID)
	assert.Equal(t, "https://www.notion.so/p1", pages[0].URL)
	require.Len(t, pages[0].Properties, 2)
	assert.Equal(t, "Tags", pages[0].Properties[0].Name)
	assert.Equal(t, "Name", pages[0].Properties[1].Name)
	assert.Equal(t, "Intro", pages[0].Properties[1].Title[0].Text.Content)
}

func TestListBlockChildren(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/blocks/p1/children", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		_, _ = io.WriteString(w, `{"object":"list","results":[
			{"id":"b1","type":"link_to_page","has_children":false,"link_to_page":{"type":"page_id","page_id":"p2"}},
			{"id":"b2","type":"link_preview","link_preview":{"url":"https://www.notion.so/x"}},
			{"id":"b3","type":"heading_2","heading_2":{"rich_text":[{"type":"text","text":{"content":"Hi"}}]}},
			{"id":"b4","type":"divider","divider":{}}
		]}`)
	})

	blocks, err := client.ListBlockChildren(context.Background(), testCreds, "p1")
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	linkToPage, ok := blocks[0].Content.(*LinkToPage)
	require.True(t, ok)
	assert.Equal(t, "p2", linkToPage.PageID)

	preview, ok := blocks[1].Content.(*LinkPreview)
	require.True(t, ok)
	assert.Equal(t, "https://www.notion.so/x", preview.URL)

	heading, ok := blocks[2].Content.(*RichTextContent)
	require.True(t, ok)
	assert.Equal(t, "Hi", heading.RichText[0].Text.Content)

	_, ok = blocks[3].Content.(*UnsupportedContent)
	assert.True(t, ok)
}

func TestListBlockChildrenSkipsMalformedBlock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"object":"list","results":[
			{"id":"b1","type":"link_to_page","link_to_page":{"type":"page_id","page_id":"p2"}},
			{"id":"b2","type":"paragraph","paragraph":{"rich_text":"not-an-array"}}
		]}`)
	})

	blocks, err := client.ListBlockChildren(context.Background(), testCreds, "p1")
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	linkToPage, ok := blocks[0].Content.(*LinkToPage)
	require.True(t, ok)
	assert.Equal(t, "p2", linkToPage.PageID)

	malformed, ok := blocks[1].Content.(*UnsupportedContent)
	require.True(t, ok)
	assert.Equal(t, BlockTypeParagraph, blocks[1].Type)
	assert.ErrorContains(t, malformed.DecodeErr, "b2")
	assert.JSONEq(t, `{"rich_text":"not-an-array"}`, string(malformed.Raw))
}

func TestAPIErrorIsDecoded(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"object":"error","status":404,"code":"object_not_found","message":"Could not find block"}`)
	})

	_, err := client.ListBlockChildren(context.Background(), testCreds, "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "object_not_found", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")
}

func TestRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`)
			return
		}
		_, _ = io.WriteString(w, `{"object":"list","results":[]}`)
	})

	blocks, err := client.ListBlockChildren(context.Background(), testCreds, "p1")
	require.NoError(t, err)
	assert.Empty(t, blocks)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithRetries(2, time.Millisecond))

	_, err := client.QueryDatabase(context.Background(), testCreds, "db1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMissingToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a token")
	})
	_, err := client.QueryDatabase(context.Background(), Credentials{}, "db1")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"object":"list","results":[]}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ListBlockChildren(ctx, testCreds, "p1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimitedClientStillServes(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"object":"list","results":[]}`)
	}, WithRateLimit(1000, 1))

	for range 3 {
		_, err := client.ListBlockChildren(context.Background(), testCreds, "p1")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestPropertiesRoundTripKeepsOrder(t *testing.T) {
	raw := `{"B":{"id":"b","type":"rich_text"},"A":{"id":"a","type":"title","title":[{"type":"text","plain_text":"x"}]}}`
	var props Properties
	require.NoError(t, json.Unmarshal([]byte(raw), &props))
	require.Len(t, props, 2)
	assert.Equal(t, "B", props[0].Name)
	assert.Equal(t, "A", props[1].Name)

	encoded, err := json.Marshal(props)
	require.NoError(t, err)
	var again Properties
	require.NoError(t, json.Unmarshal(encoded, &again))
	assert.Equal(t, props, again)
}
