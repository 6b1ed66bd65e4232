package builtin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearchToolExecute_InstantAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "what is go", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, `{"Answer":"Go is a programming language"}`)
	}))
	defer server.Close()

	tool := &WebSearchTool{Client: server.Client(), BaseURL: server.URL, MaxResults: 5}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"what is go"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "Go is a programming language", resp["answer"])
}

func TestWebSearchToolExecute_AbstractWithSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Abstract":"Go is a statically typed language.","AbstractURL":"https://en.wikipedia.org/wiki/Go"}`)
	}))
	defer server.Close()

	tool := &WebSearchTool{Client: server.Client(), BaseURL: server.URL, MaxResults: 5}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"golang"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "Go is a statically typed language.", resp["answer"])
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go", resp["source"])
}

func TestWebSearchToolExecute_RelatedTopicsFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"RelatedTopics":[
			{"Text":"First result","FirstURL":"https://a.example"},
			{"Topics":[{"Text":"Nested result","FirstURL":"https://b.example"}]},
			{"Text":"Third result","FirstURL":"https://c.example"}
		]}`)
	}))
	defer server.Close()

	tool := &WebSearchTool{Client: server.Client(), BaseURL: server.URL, MaxResults: 2}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"golang"}`))
	require.NoError(t, err)

	var resp struct {
		Results []map[string]string `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "First result", resp.Results[0]["title"])
	assert.Equal(t, "Nested result", resp.Results[1]["title"])
}

func TestWebSearchToolExecute_PerCallMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"RelatedTopics":[
			{"Text":"First result","FirstURL":"https://a.example"},
			{"Text":"Second result","FirstURL":"https://b.example"},
			{"Text":"Third result","FirstURL":"https://c.example"}
		]}`)
	}))
	defer server.Close()

	tool := &WebSearchTool{Client: server.Client(), BaseURL: server.URL, MaxResults: 5}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"golang","max_results":1}`))
	require.NoError(t, err)

	var resp struct {
		Results []map[string]string `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "First result", resp.Results[0]["title"])
}

func TestWebSearchToolExecute_SiteFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "site:go.dev generics", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, `{"Answer":"ok"}`)
	}))
	defer server.Close()

	tool := &WebSearchTool{Client: server.Client(), BaseURL: server.URL, MaxResults: 5}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"generics","site":"go.dev"}`))
	require.NoError(t, err)
}

func TestWebSearchToolExecute_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer server.Close()

	tool := &WebSearchTool{Client: server.Client(), BaseURL: server.URL, MaxResults: 5}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"zz"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Contains(t, resp["message"], "No results found")
}

func TestWebSearchToolExecute_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tool := &WebSearchTool{Client: server.Client(), BaseURL: server.URL, MaxResults: 5}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"zz"}`))
	assert.ErrorContains(t, err, "search request failed")
}
