package soundcloud

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schls/model"
)

const trackJSON = `{
  "id": 42,
  "title": "Night Drive",
  "duration": 185000,
  "track_authorization": "auth-token",
  "artwork_url": "https://i1.sndcdn.com/artworks-x-large.jpg",
  "user": {"id": 7, "username": "someone"},
  "media": {"transcodings": [
    {"url": "%s/media/1/stream/hls", "preset": "mp3_0_0", "quality": "sq", "format": {"protocol": "hls", "mime_type": "audio/mpeg"}}
  ]}
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("cid", "OAuth tok")
	c.SetBaseURL(srv.URL)
	return c, srv
}

func TestResolve(t *testing.T) {
	var srvURL string
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resolve", r.URL.Path)
		assert.Equal(t, "https://soundcloud.com/someone/night-drive", r.URL.Query().Get("url"))
		assert.Equal(t, "cid", r.URL.Query().Get("client_id"))
		assert.Equal(t, "OAuth tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fmt.Sprintf(trackJSON, srvURL)))
	})
	srvURL = srv.URL

	track, err := c.Resolve(context.Background(), "https://soundcloud.com/someone/night-drive")
	require.NoError(t, err)
	assert.Equal(t, "Night Drive", track.Title)
	assert.Equal(t, int64(185000), track.Duration)
	assert.Equal(t, "auth-token", track.TrackAuthorization)
	require.Len(t, track.Media.Transcodings, 1)
	assert.Equal(t, "hls", track.Media.Transcodings[0].Protocol())
}

func TestResolveOmitsAuthorizationWithoutOAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"title":"t","duration":1}`))
	}))
	defer srv.Close()

	c := NewClient("cid", "")
	c.SetBaseURL(srv.URL)
	_, err := c.Resolve(context.Background(), "https://soundcloud.com/a/b")
	require.NoError(t, err)
}

func TestResolveMissingFields(t *testing.T) {
	for name, body := range map[string]string{
		"no title":    `{"duration": 1000}`,
		"no duration": `{"title": "x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Resolve(context.Background(), "https://soundcloud.com/a/b")
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestResolveUpstreamStatus(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	})
	_, err := c.Resolve(context.Background(), "https://soundcloud.com/a/b")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
}

func TestResolveRejectsBadURL(t *testing.T) {
	c := NewClient("cid", "")
	_, err := c.Resolve(context.Background(), "https://example.com/a/b")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

type memStore struct {
	mu     sync.Mutex
	tracks map[string]*model.Track
	sets   int
}

func (m *memStore) GetTrack(_ context.Context, u string) (*model.Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[u]
	return t, ok
}

func (m *memStore) SetTrack(_ context.Context, u string, t *model.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[u] = t
	m.sets++
}

func TestResolveUsesTrackStore(t *testing.T) {
	hits := 0
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"title":"cached","duration":10}`))
	})
	store := &memStore{tracks: map[string]*model.Track{}}
	c.SetTrackStore(store)

	for i := 0; i < 3; i++ {
		track, err := c.Resolve(context.Background(), "https://soundcloud.com/a/b")
		require.NoError(t, err)
		assert.Equal(t, "cached", track.Title)
	}
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, store.sets)
}

func TestStreamURL(t *testing.T) {
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media/1/stream/hls", r.URL.Path)
		assert.Equal(t, "auth-token", r.URL.Query().Get("track_authorization"))
		assert.Equal(t, "cid", r.URL.Query().Get("client_id"))
		_, _ = w.Write([]byte(`{"url":"https://cf-hls-media.sndcdn.com/playlist/x.m3u8"}`))
	})

	u, err := c.StreamURL(context.Background(), model.Transcoding{URL: srv.URL + "/media/1/stream/hls"}, "auth-token")
	require.NoError(t, err)
	assert.Equal(t, "https://cf-hls-media.sndcdn.com/playlist/x.m3u8", u)
}

func TestStreamURLMissingField(t *testing.T) {
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.StreamURL(context.Background(), model.Transcoding{URL: srv.URL + "/m"}, "a")
	var ue *UpstreamError
	assert.ErrorAs(t, err, &ue)
}

func TestStreamURLNotFound(t *testing.T) {
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.StreamURL(context.Background(), model.Transcoding{URL: srv.URL + "/m"}, "a")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
}

func TestMe(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": 1, "username": "listener", "full_name": "A Listener"}`))
	})
	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "listener", me.Username)
}

func TestSetCredentials(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "new-id", r.URL.Query().Get("client_id"))
		assert.Equal(t, "OAuth new", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"username": "u"}`))
	})
	c.SetCredentials("new-id", "OAuth new")
	assert.Equal(t, "OAuth new", c.OAuth())

	_, err := c.Me(context.Background())
	require.NoError(t, err)
}
