package session

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/spend/internal/api"
	"github.com/cleared-dev/spend/internal/model"
)

func TestState_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	base, err := url.Parse("http://api.test/api/v1")
	require.NoError(t, err)
	jar := api.NewJar()
	jar.SetCookies(base, []*http.Cookie{
		{Name: "ecomm-refresh", Value: "s1", Path: "/", HttpOnly: true, Expires: expires},
		{Name: "csrftoken", Value: "t1"},
	})

	st := &State{
		BaseURL:   "http://api.test/api/v1",
		User:      &model.User{ID: 3, Email: "ada@example.com", FirstName: "Ada"},
		CSRFToken: "t1",
	}
	st.SetCookies(jar.All())
	require.NoError(t, SaveState(dir, st))

	info, err := os.Stat(filepath.Join(dir, StateFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, st.BaseURL, got.BaseURL)
	assert.Equal(t, st.CSRFToken, got.CSRFToken)
	require.NotNil(t, got.User)
	assert.Equal(t, "ada@example.com", got.User.Email)

	restored := api.NewJar()
	restored.Load(base, got.HTTPCookies())
	c, ok := restored.Get("ecomm-refresh")
	require.True(t, ok)
	assert.Equal(t, "s1", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, expires.Equal(c.Expires))
	assert.Len(t, restored.Cookies(base), 2)
}

func TestLoadState_Missing(t *testing.T) {
	st, err := LoadState(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Cookies)
}

func TestLoadState_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte("user: [unterminated"), 0o600))
	_, err := LoadState(dir)
	assert.Error(t, err)
}

func TestRemoveState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveState(dir, &State{CSRFToken: "x"}))
	require.NoError(t, RemoveState(dir))
	require.NoError(t, RemoveState(dir), "missing file is fine")

	_, err := os.Stat(filepath.Join(dir, StateFile))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
