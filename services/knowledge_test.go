package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_audit_backend/config"
)

func newTestKnowledgeService(serverURL string) *KnowledgeService {
	return NewKnowledgeService(&config.Config{
		KnowledgeAgent: serverURL,
		SearchTopK:     3,
		VectorTimeout:  5 * time.Second,
	}, newMemCache())
}

func TestVectorizeText_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectorize/text", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["fileId"])
		assert.Equal(t, "bid.txt", body["fileName"])
		assert.Equal(t, "the document", body["content"])
		fmt.Fprint(w, `{"id":"42","userId":42,"embedding_result":true}`)
	}))
	defer server.Close()

	svc := newTestKnowledgeService(server.URL)
	res, err := svc.VectorizeText(context.Background(), "42", 42, "bid.txt", "the document")
	require.NoError(t, err)
	assert.Equal(t, "42", res.ID)
	assert.Equal(t, int64(42), res.UserID)
	assert.True(t, res.EmbeddingResult)
}

func TestVectorizeTextList_SendsList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectorize/text_list", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []interface{}{"a", "b"}, body["content"])
		fmt.Fprint(w, `{"id":"42","userId":42,"embedding_result":true}`)
	}))
	defer server.Close()

	svc := newTestKnowledgeService(server.URL)
	res, err := svc.VectorizeTextList(context.Background(), "42", 42, "bid.txt", []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, res.EmbeddingResult)
}

func TestVectorizeText_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestKnowledgeService(server.URL)
	_, err := svc.VectorizeText(context.Background(), "42", 42, "bid.txt", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSearch_FlatResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		fmt.Fprint(w, `{
			"documents": ["first passage", "second passage"],
			"metadatas": [{"file_id":"42","file_name":"bid.txt"},{"file_id":42,"file_name":"bid.txt"}]
		}`)
	}))
	defer server.Close()

	svc := newTestKnowledgeService(server.URL)
	results, err := svc.Search(context.Background(), "42", "security")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first passage", results[0].Content)
	assert.Equal(t, "42", results[0].ID)
	assert.Equal(t, "bid.txt", results[0].Title)
	// numeric file_id still resolves
	assert.Equal(t, "42", results[1].ID)
}

func TestSearch_NestedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"documents": [["nested passage"]],
			"metadatas": [[{"file_id":"42","file_name":"bid.txt"}]]
		}`)
	}))
	defer server.Close()

	svc := newTestKnowledgeService(server.URL)
	results, err := svc.Search(context.Background(), "42", "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "nested passage", results[0].Content)
}

func TestSearch_SkipsEntriesWithoutFileID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"documents": ["kept", "orphan", ""],
			"metadatas": [{"file_id":"42"},{},{"file_id":"42"}]
		}`)
	}))
	defer server.Close()

	svc := newTestKnowledgeService(server.URL)
	results, err := svc.Search(context.Background(), "42", "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Content)
}

func TestSearch_CachesRepeatedQueries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, `{"documents":["p"],"metadatas":[{"file_id":"42"}]}`)
	}))
	defer server.Close()

	svc := newTestKnowledgeService(server.URL)
	for i := 0; i < 3; i++ {
		results, err := svc.Search(context.Background(), "42", "same query")
		require.NoError(t, err)
		require.Len(t, results, 1)
	}
	assert.Equal(t, 1, calls)
}

func TestSearch_DecodesStringCachedValue(t *testing.T) {
	cacheStore := newMemCache()
	svc := NewKnowledgeService(&config.Config{KnowledgeAgent: "http://unused", SearchTopK: 3, VectorTimeout: time.Second}, cacheStore)

	// an L2 hit comes back as JSON text
	require.NoError(t, cacheStore.SetCache("kb_search:42:q", `[{"title":"bid.txt","id":"42","content":"cached"}]`, time.Minute))

	results, err := svc.Search(context.Background(), "42", "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cached", results[0].Content)
}
