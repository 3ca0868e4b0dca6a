package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mychat/model"
)

const completionJSON = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"qwen3:0.6b",` +
	`"choices":[{"index":0,"message":{"role":"assistant","content":"Hello there"},"finish_reason":"stop"}]}`

func TestBufferedProviderSingleDelta(t *testing.T) {
	var body map[string]any
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionJSON)
	}))
	defer srv.Close()

	p := NewBufferedProvider(WithHTTPClient(srv.Client()))
	history := []model.Message{{ID: "1", Role: model.RoleUser, Content: "hi"}}
	stream, err := p.Stream(context.Background(), testConfig(srv.URL+"/v1"), history)
	require.NoError(t, err)

	deltas, err := collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello there"}, deltas)

	assert.Equal(t, chatCompletionsPath, gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, false, body["stream"])
	assert.Equal(t, model.DefaultModel, body["model"])
	assert.EqualValues(t, model.DefaultMaxTokens, body["max_tokens"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestBufferedProviderEmptyContentStillYieldsOneDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	stream, err := NewBufferedProvider().Stream(context.Background(), testConfig(srv.URL), nil)
	require.NoError(t, err)
	deltas, err := collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, deltas)
}

func TestBufferedProviderRequestError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	}))
	defer srv.Close()

	_, err := NewBufferedProvider().Stream(context.Background(), testConfig(srv.URL), nil)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 500, reqErr.StatusCode)
	assert.Equal(t, "boom", reqErr.Body)
	assert.Equal(t, 1, calls)
}

func TestBufferedProviderOmitsAuthWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")

	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionJSON)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	_, err := NewBufferedProvider().Stream(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.False(t, sawAuth)
}

func TestBufferedProviderTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewBufferedProvider().Stream(context.Background(), testConfig(url), nil)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestConvertToOpenAIMessages(t *testing.T) {
	msgs := ConvertToOpenAIMessages([]model.Message{
		{Role: model.RoleSystem, Content: "s"},
		{Role: model.RoleUser, Content: "u"},
		{Role: model.RoleAssistant, Content: "a"},
	})
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}
