package birdeye_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	birdeye "tokenmetrics/internal/provider/birdeye"
)

func TestNewBirdeyeAPIClient(t *testing.T) {
	t.Parallel()

	// Assert: a valid key should return an authenticated client.
	client, err := birdeye.NewBirdeyeAPIClient("test")
	require.NoErrorf(t, err, "unexpected error: %v", err)
	require.NotNilf(t, client, "unexpected nil client")
	require.True(t, client.HasAPIKey())

	// Assert: a blank key yields an unauthenticated client.
	client, err = birdeye.NewBirdeyeAPIClient("   ")
	require.NoError(t, err)
	require.False(t, client.HasAPIKey())
}

func TestNewBirdeyeAPIClient_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	client, err := birdeye.NewBirdeyeAPIClient("test", birdeye.WithBaseURL(string([]rune{0x7f})))
	require.Error(t, err)
	require.Nil(t, client)
}

func TestWithHTTPClient_SendsCredentialHeaders(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method and check the auth headers
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "test", req.Header.Get("X-API-KEY"))
			require.Equal(t, "solana", req.Header.Get("x-chain"))
			return jsonResponse(t, http.StatusOK, map[string]any{"success": true, "data": nil}), nil
		}).
		Times(1)

	// Arrange: create a new client with a custom HTTP client.
	client, err := birdeye.NewBirdeyeAPIClient("test", birdeye.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call GetTokenOverview with the custom HTTP client.
	ov, err := client.GetTokenOverview(t.Context(), "addr")
	require.NoError(t, err)
	require.Nil(t, ov)
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	baseURL := "http://localhost:8080"

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return jsonResponse(t, http.StatusOK, map[string]any{}), nil
		}).
		Times(1)

	// Arrange: trailing slashes are trimmed from the base url.
	client, err := birdeye.NewBirdeyeAPIClient("test", birdeye.WithHTTPClient(httpClient), birdeye.WithBaseURL(baseURL+"/"))
	require.NoError(t, err)

	_, err = client.GetTokenOverview(t.Context(), "addr")
	require.NoError(t, err)
}

func TestWithHeaderAndChain(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			require.Equal(t, "base", req.Header.Get("x-chain"))
			return jsonResponse(t, http.StatusOK, map[string]any{}), nil
		}).
		Times(1)

	client, err := birdeye.NewBirdeyeAPIClient("test",
		birdeye.WithHTTPClient(httpClient),
		birdeye.WithChain("base"),
		birdeye.WithHeader(http.Header{"foo": []string{"bar"}}),
	)
	require.NoError(t, err)

	_, err = client.GetTokenOverview(t.Context(), "addr")
	require.NoError(t, err)
}

// jsonResponse builds an *http.Response whose body is v encoded as JSON.
func jsonResponse(t *testing.T, status int, v any) *http.Response {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(v))
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(buffer),
	}
}

// rawResponse builds an *http.Response with a literal body.
func rawResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
