package catapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"spycats/pkg/domain"
)

const breedsPayload = `[{"id":"siam","name":"Siamese"},{"id":"mcoo","name":"Maine Coon"},{"id":"beng","name":"Bengal"}]`

func newCatalog(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v1/breeds" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestIsValidBreedCaseInsensitiveAndCached(t *testing.T) {
	srv, hits := newCatalog(t, http.StatusOK, breedsPayload)
	client := New(Config{BaseURL: srv.URL + "/", APIKey: "secret", RatePerSecond: 100})
	ctx := context.Background()

	ok, err := client.IsValidBreed(ctx, "siamese")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.IsValidBreed(ctx, " MAINE coon ")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.IsValidBreed(ctx, "Dragon")
	require.NoError(t, err)
	require.False(t, ok)
	require.EqualValues(t, 1, hits.Load(), "catalog should be fetched once")

	client.Invalidate()
	_, err = client.IsValidBreed(ctx, "Bengal")
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestIsValidBreedFailuresAreUnavailable(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		status int
		body   string
		apiKey string
	}{
		{"server error", http.StatusInternalServerError, "oops", "secret"},
		{"unauthorized", http.StatusOK, breedsPayload, "wrong"},
		{"malformed", http.StatusOK, `{"name":`, "secret"},
		{"not an array", http.StatusOK, `{"name":"Siamese"}`, "secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newCatalog(t, tc.status, tc.body)
			client := New(Config{BaseURL: srv.URL, APIKey: tc.apiKey})
			ok, err := client.IsValidBreed(ctx, "Siamese")
			require.False(t, ok)
			require.True(t, errors.Is(err, domain.ErrLookupUnavailable), "got %v", err)
		})
	}

	srv, _ := newCatalog(t, http.StatusOK, breedsPayload)
	srv.Close()
	_, err := New(Config{BaseURL: srv.URL, APIKey: "secret"}).IsValidBreed(ctx, "Siamese")
	require.True(t, errors.Is(err, domain.ErrLookupUnavailable), "got %v", err)
}

func TestIsValidBreedHonoursContext(t *testing.T) {
	srv, hits := newCatalog(t, http.StatusOK, breedsPayload)
	client := New(Config{BaseURL: srv.URL, APIKey: "secret", RatePerSecond: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.IsValidBreed(ctx, "Siamese")
	require.True(t, errors.Is(err, domain.ErrLookupUnavailable), "got %v", err)
	require.EqualValues(t, 0, hits.Load())
}
