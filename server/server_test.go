package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schls/core/audio"
	"schls/core/codec"
	"schls/core/downloader"
	"schls/core/soundcloud"
	"schls/model"
)

func fakeSoundCloud(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/resolve":
			fmt.Fprintf(w, `{"title":"Night Drive","duration":5000,"track_authorization":"ta",
				"media":{"transcodings":[{"url":"%s/stream","preset":"mp3_0_0","quality":"sq","format":{"protocol":"hls"}}]}}`, srv.URL)
		case "/stream":
			fmt.Fprintf(w, `{"url":"%s/playlist.m3u8"}`, srv.URL)
		case "/me":
			fmt.Fprint(w, `{"id":1,"username":"listener"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// gatedDownloader emits a start stage, waits for release or cancellation,
// then finishes.
type gatedDownloader struct {
	release chan struct{}
}

func (g *gatedDownloader) Download(ctx context.Context, job audio.Job) <-chan audio.Event {
	ch := make(chan audio.Event)
	go func() {
		defer close(ch)
		send := func(ev audio.Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send(audio.StageEvent{Message: "Starting download..."}) ||
			!send(audio.ProgressEvent{Total: 5000, Fields: audio.ProgressTotal}) {
			return
		}
		select {
		case <-g.release:
		case <-ctx.Done():
			return
		}
		send(audio.ProgressEvent{Current: 5000, Total: 5001, Fields: audio.ProgressCurrent | audio.ProgressTotal})
		send(audio.DoneEvent{Path: job.OutputPath})
	}()
	return ch
}

func newTestServer(t *testing.T, d audio.Downloader) (*Server, *httptest.Server) {
	t.Helper()
	api := fakeSoundCloud(t)
	client := soundcloud.NewClient("cid", "")
	client.SetBaseURL(api.URL)

	svc := downloader.NewService(client, d, downloader.Options{OutputDir: t.TempDir(), DefaultCodec: codec.MP3})
	s := New(svc, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func postDownload(t *testing.T, ts *httptest.Server, body string) (*http.Response, createDownloadResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/downloads", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out createDownloadResponse
	if resp.StatusCode == http.StatusAccepted {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealthAndMe(t *testing.T) {
	_, ts := newTestServer(t, &gatedDownloader{release: make(chan struct{})})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	var account model.Account
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&account))
	assert.Equal(t, "listener", account.Username)
}

func TestCreateDownloadValidation(t *testing.T) {
	_, ts := newTestServer(t, &gatedDownloader{release: make(chan struct{})})

	bodies := []string{
		`{`,
		`{"url": ""}`,
		`{"url": "https://example.com/a/b"}`,
		`{"url": "https://soundcloud.com/a/b", "codec": "alac"}`,
	}
	for _, body := range bodies {
		resp, _ := postDownload(t, ts, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestDownloadStreamsEventsOverWebsocket(t *testing.T) {
	gate := &gatedDownloader{release: make(chan struct{})}
	_, ts := newTestServer(t, gate)

	resp, created := postDownload(t, ts, `{"url": "https://soundcloud.com/a/night-drive"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "Night Drive", created.Title)
	assert.Equal(t, "mp3", created.Codec)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/downloads/" + created.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	close(gate.release)

	var msgs []eventMessage
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg eventMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		msgs = append(msgs, msg)
	}

	require.Len(t, msgs, 4)
	assert.Equal(t, "stage", msgs[0].Type)
	assert.Equal(t, "Starting download...", msgs[0].Message)
	assert.Equal(t, "progress", msgs[1].Type)
	assert.Nil(t, msgs[1].Current)
	assert.Equal(t, int64(5000), *msgs[1].Total)
	assert.Equal(t, int64(5001), *msgs[2].Total)
	assert.Equal(t, "done", msgs[3].Type)
	assert.Equal(t, created.OutputPath, msgs[3].Path)
	assert.Empty(t, msgs[3].Error)

	resp, err = http.Get(ts.URL + "/api/downloads/" + created.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var state jobState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, model.DownloadStatusCompleted, state.Status)
	assert.Equal(t, int64(5000), state.Current)
}

func TestCancelDownload(t *testing.T) {
	_, ts := newTestServer(t, &gatedDownloader{release: make(chan struct{})})

	resp, created := postDownload(t, ts, `{"url": "https://soundcloud.com/a/night-drive"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/downloads/"+created.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var state jobState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.DownloadStatusCancelled, state.Status)

	// A second cancel conflicts.
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/downloads/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestToMessage(t *testing.T) {
	msg := toMessage(audio.ProgressEvent{Current: 10, Fields: audio.ProgressCurrent})
	require.NotNil(t, msg.Current)
	assert.Nil(t, msg.Total)

	msg = toMessage(audio.DoneEvent{Err: &audio.ExternalProcessError{Op: "download", ExitCode: 1, Stderr: "no such stream"}})
	assert.Equal(t, "done", msg.Type)
	assert.Contains(t, msg.Error, "no such stream")
}
