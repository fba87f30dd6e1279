package blocklist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefixBody(prefixes ...string) string {
	body := `{"prefixes": [`
	for i, p := range prefixes {
		if i > 0 {
			body += ","
		}
		body += `{"ipv4Prefix": "` + p + `"}`
	}
	return body + `]}`
}

func prefixServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRefresher(t *testing.T, sources map[string]string) (*Refresher, *Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "block_ips.json")
	store := NewStore(path)
	require.NoError(t, store.Load())

	refresher := NewRefresher(store, sources).WithPause(0).WithPrimeURL("")
	return refresher, store, path
}

func TestRefreshPartialSuccess(t *testing.T) {
	good1 := prefixServer(t, prefixBody("10.1.0.0/24"), http.StatusOK)
	good2 := prefixServer(t, prefixBody("10.2.0.0/24", "10.3.0.0/24"), http.StatusOK)
	bad := prefixServer(t, "upstream exploded", http.StatusInternalServerError)

	refresher, store, path := newTestRefresher(t, map[string]string{
		"gptbot":       good1.URL,
		"searchbot":    good2.URL,
		"chatgpt-user": bad.URL,
	})

	result, err := refresher.Refresh(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"gptbot", "searchbot"}, result.Updated)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "chatgpt-user")

	// Merge was persisted.
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	ranges, ok := store.Agent("searchbot")
	require.True(t, ok)
	assert.Equal(t, []string{"10.2.0.0/24", "10.3.0.0/24"}, ranges)

	// The failed agent keeps its previous (empty) list.
	ranges, ok = store.Agent("chatgpt-user")
	require.True(t, ok)
	assert.Empty(t, ranges)
}

func TestRefreshTotalFailure(t *testing.T) {
	bad := prefixServer(t, "nope", http.StatusForbidden)

	refresher, _, path := newTestRefresher(t, map[string]string{
		"gptbot":       bad.URL,
		"searchbot":    bad.URL,
		"chatgpt-user": bad.URL,
	})

	// Pre-existing durable dataset must survive byte-for-byte.
	seed := []byte(`{"openai": {"gptbot": ["10.0.0.0/8"]}}`)
	require.NoError(t, os.WriteFile(path, seed, 0o644))

	result, err := refresher.Refresh(context.Background())
	assert.Nil(t, result)

	var allFailed *AllFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Len(t, allFailed.Warnings, 3)

	after, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, seed, after)
}

func TestRefreshIdempotent(t *testing.T) {
	srv := prefixServer(t, prefixBody("10.1.0.0/24"), http.StatusOK)

	refresher, _, path := newTestRefresher(t, map[string]string{"gptbot": srv.URL})

	first, err := refresher.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gptbot"}, first.Updated)

	stamp, err := os.ReadFile(path)
	require.NoError(t, err)

	// Identical upstream data: nothing updated, nothing rewritten.
	second, err := refresher.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Updated)
	assert.Empty(t, second.Warnings)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stamp, after)
}

func TestRefreshEmptyListRetainsPrevious(t *testing.T) {
	full := prefixServer(t, prefixBody("10.1.0.0/24"), http.StatusOK)

	refresher, store, _ := newTestRefresher(t, map[string]string{"gptbot": full.URL})
	_, err := refresher.Refresh(context.Background())
	require.NoError(t, err)

	// Upstream transiently reports nothing: stale beats empty.
	empty := prefixServer(t, `{"prefixes": []}`, http.StatusOK)
	refresher2 := NewRefresher(store, map[string]string{"gptbot": empty.URL}).WithPause(0).WithPrimeURL("")

	result, err := refresher2.Refresh(context.Background())
	assert.Nil(t, result)

	var allFailed *AllFailedError
	require.ErrorAs(t, err, &allFailed)
	require.Len(t, allFailed.Warnings, 1)
	assert.Contains(t, allFailed.Warnings[0], "no IP data found for gptbot")

	ranges, ok := store.Agent("gptbot")
	require.True(t, ok)
	assert.Equal(t, []string{"10.1.0.0/24"}, ranges)
}

func TestRefreshMalformedBodyIsAWarning(t *testing.T) {
	good := prefixServer(t, prefixBody("10.1.0.0/24"), http.StatusOK)
	malformed := prefixServer(t, "<html>definitely not json</html>", http.StatusOK)

	refresher, _, _ := newTestRefresher(t, map[string]string{
		"gptbot":    good.URL,
		"searchbot": malformed.URL,
	})

	result, err := refresher.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gptbot"}, result.Updated)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "JSON decode error for searchbot")
}

func TestRefreshRejectsConcurrentRun(t *testing.T) {
	inFlight := make(chan struct{})
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight <- struct{}{}
		<-release
		w.Write([]byte(prefixBody("10.1.0.0/24")))
	}))
	t.Cleanup(slow.Close)

	refresher, _, _ := newTestRefresher(t, map[string]string{"gptbot": slow.URL})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := refresher.Refresh(context.Background())
		assert.NoError(t, err)
	}()

	// The first run is now inside its fetch and holds the refresh lock.
	<-inFlight

	_, err := refresher.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)

	close(release)
	wg.Wait()
}
