package push

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient("")
	assert.False(t, c.Enabled())
	assert.NoError(t, c.Subscribe(context.Background(), "bob", Subscription{}))
	c.Notify(context.Background(), "bob", "t", "b", nil)
}

func TestClientCalls(t *testing.T) {
	type call struct {
		method, path string
		body         map[string]any
	}
	calls := make(chan call, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls <- call{r.Method, r.URL.Path, body}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	c := NewClient(srv.URL + "/")
	ctx := context.Background()

	var sub Subscription
	sub.Endpoint = "https://push.example/abc"
	sub.Keys.P256dh, sub.Keys.Auth = "p", "a"
	require.True(t, sub.Valid())
	require.NoError(t, c.Subscribe(ctx, "bob", sub))
	got := <-calls
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/subscribe", got.path)
	assert.Equal(t, "bob", got.body["user_id"])

	require.NoError(t, c.Unsubscribe(ctx, "bob", sub.Endpoint))
	got = <-calls
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, sub.Endpoint, got.body["endpoint"])

	c.Notify(ctx, "bob", "Alice", "hi", map[string]string{"conversation_id": "c1"})
	got = <-calls
	assert.Equal(t, "/api/notify", got.path)
	assert.Equal(t, "Alice", got.body["title"])
}

func TestClientReportsUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	err := NewClient(srv.URL).Subscribe(context.Background(), "bob", Subscription{})
	assert.Error(t, err)
}

func TestEnsureVAPIDKeysPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "vapid.json")
	first, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	require.NotEmpty(t, first.PublicKey)
	require.NotEmpty(t, first.PrivateKey)

	second, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureVAPIDKeysHaveP256Lengths(t *testing.T) {
	keys, err := EnsureVAPIDKeys(filepath.Join(t.TempDir(), "vapid.json"))
	require.NoError(t, err)

	pub, err := base64.RawURLEncoding.DecodeString(keys.PublicKey)
	require.NoError(t, err)
	assert.Len(t, pub, 65, "public key is an uncompressed P-256 point")

	priv, err := base64.RawURLEncoding.DecodeString(keys.PrivateKey)
	require.NoError(t, err)
	assert.Len(t, priv, 32, "private key is a P-256 scalar")
}

func TestEnsureVAPIDKeysReplacesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vapid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"public_key":"x","private_key":"y"}`), 0o600))

	keys, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	assert.NoError(t, keys.validate())
	assert.NotEqual(t, "x", keys.PublicKey)
}

func TestKeysPathFallsBackToEnv(t *testing.T) {
	t.Setenv("VAPID_KEYS_FILE", "/tmp/elsewhere.json")
	assert.Equal(t, "/tmp/elsewhere.json", KeysPath(""))
	assert.Equal(t, "a.json", KeysPath("a.json"))
}
