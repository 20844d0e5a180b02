package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schls/core/audio"
	"schls/core/codec"
	"schls/core/soundcloud"
	"schls/model"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/resolve":
			fmt.Fprintf(w, `{"title":"Night Drive","duration":5000,"track_authorization":"ta",
				"media":{"transcodings":[
					{"url":"%[1]s/stream/mp3","preset":"mp3_0_0","quality":"sq","format":{"protocol":"hls"}},
					{"url":"%[1]s/stream/opus","preset":"opus_0_0","quality":"hq","format":{"protocol":"hls"}}
				]}}`, srv.URL)
		case "/stream/mp3", "/stream/opus":
			fmt.Fprintf(w, `{"url":"%s/playlist.m3u8"}`, srv.URL)
		case "/playlist.m3u8":
			fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:5.0,\nseg0.mp3\n#EXT-X-ENDLIST\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type scriptedDownloader struct {
	job    audio.Job
	events []audio.Event
}

func (d *scriptedDownloader) Download(ctx context.Context, job audio.Job) <-chan audio.Event {
	d.job = job
	ch := make(chan audio.Event)
	go func() {
		defer close(ch)
		for _, ev := range d.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

type memHistory struct {
	mu      sync.Mutex
	records map[string]*model.DownloadRecord
}

func newMemHistory() *memHistory {
	return &memHistory{records: map[string]*model.DownloadRecord{}}
}

func (m *memHistory) Create(_ context.Context, r *model.DownloadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *memHistory) UpdateStatus(_ context.Context, id, status, path, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return errors.New("not found")
	}
	r.Status = status
	if path != "" {
		r.OutputPath = path
	}
	r.Error = errMsg
	return nil
}

func (m *memHistory) Get(_ context.Context, id string) (*model.DownloadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id], nil
}

func (m *memHistory) List(context.Context, int) ([]*model.DownloadRecord, error) {
	return nil, nil
}

type fakeUploader struct {
	paths []string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, p string) (string, error) {
	f.paths = append(f.paths, p)
	if f.err != nil {
		return "", f.err
	}
	return "tracks/" + filepath.Base(p), nil
}

func drain(t *testing.T, ch <-chan audio.Event) []audio.Event {
	t.Helper()
	var out []audio.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(5 * time.Second):
			t.Fatal("sequence did not finish")
		}
	}
}

func newTestService(t *testing.T, d audio.Downloader, h *memHistory, u Uploader) *Service {
	api := fakeAPI(t)
	client := soundcloud.NewClient("cid", "OAuth x")
	client.SetBaseURL(api.URL)
	return NewService(client, d, Options{History: h, Uploader: u, OutputDir: t.TempDir(), DefaultCodec: codec.MP3})
}

func TestPrepare(t *testing.T) {
	svc := newTestService(t, &scriptedDownloader{}, nil, nil)

	p, err := svc.Prepare(context.Background(), Request{URL: "https://soundcloud.com/a/night-drive", Codec: "opus"})
	require.NoError(t, err)
	assert.Equal(t, "opus_0_0", p.Transcoding.Preset)
	assert.Equal(t, codec.Opus, p.Job.Codec)
	assert.Equal(t, "Night Drive.ogg", filepath.Base(p.Job.OutputPath))
	assert.Equal(t, "OAuth x", p.Job.OAuth)
	assert.Contains(t, p.Job.StreamURL, "/playlist.m3u8")
	require.NotNil(t, p.Playlist)
	assert.Equal(t, 1, p.Playlist.Segments)
}

func TestPrepareErrors(t *testing.T) {
	svc := newTestService(t, &scriptedDownloader{}, nil, nil)

	_, err := svc.Prepare(context.Background(), Request{URL: "https://soundcloud.com/a/b", Codec: "alac"})
	var ve *soundcloud.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Prepare(context.Background(), Request{URL: "not a url"})
	assert.ErrorAs(t, err, &ve)
}

func TestStartRecordsSuccessAndUploads(t *testing.T) {
	h := newMemHistory()
	up := &fakeUploader{}
	d := &scriptedDownloader{}
	svc := newTestService(t, d, h, up)

	p, err := svc.Prepare(context.Background(), Request{URL: "https://soundcloud.com/a/b", Upload: true})
	require.NoError(t, err)
	d.events = []audio.Event{
		audio.StageEvent{Message: "Starting download..."},
		audio.DoneEvent{Path: p.Job.OutputPath},
	}

	id, ch := svc.Start(context.Background(), p)
	events := drain(t, ch)

	require.Len(t, events, 4)
	assert.Equal(t, audio.StageEvent{Message: "Uploading to object storage..."}, events[1])
	assert.Equal(t, audio.StageEvent{Message: "Uploaded as tracks/" + filepath.Base(p.Job.OutputPath)}, events[2])
	assert.Equal(t, audio.DoneEvent{Path: p.Job.OutputPath}, events[3])
	assert.Equal(t, []string{p.Job.OutputPath}, up.paths)

	rec, _ := h.Get(context.Background(), id)
	require.NotNil(t, rec)
	assert.Equal(t, model.DownloadStatusCompleted, rec.Status)
	assert.Equal(t, "Night Drive", rec.Title)
}

func TestStartUploadFailureKeepsDownload(t *testing.T) {
	h := newMemHistory()
	up := &fakeUploader{err: errors.New("bucket unreachable")}
	d := &scriptedDownloader{}
	svc := newTestService(t, d, h, up)

	p, err := svc.Prepare(context.Background(), Request{URL: "https://soundcloud.com/a/b", Upload: true})
	require.NoError(t, err)
	d.events = []audio.Event{audio.DoneEvent{Path: p.Job.OutputPath}}

	id, ch := svc.Start(context.Background(), p)
	events := drain(t, ch)

	require.Len(t, events, 3)
	assert.Equal(t, audio.StageEvent{Message: "Uploading to object storage..."}, events[0])
	assert.Equal(t, audio.StageEvent{Message: "Upload failed: bucket unreachable"}, events[1])
	assert.Equal(t, audio.DoneEvent{Path: p.Job.OutputPath}, events[2])

	rec, _ := h.Get(context.Background(), id)
	require.NotNil(t, rec)
	assert.Equal(t, model.DownloadStatusCompleted, rec.Status)
}

func TestStartRecordsFailure(t *testing.T) {
	h := newMemHistory()
	d := &scriptedDownloader{}
	svc := newTestService(t, d, h, &fakeUploader{})

	p, err := svc.Prepare(context.Background(), Request{URL: "https://soundcloud.com/a/b", Upload: true})
	require.NoError(t, err)
	failure := &audio.ExternalProcessError{Op: "download", ExitCode: 1, Stderr: "no such stream"}
	d.events = []audio.Event{audio.DoneEvent{Err: failure}}

	id, ch := svc.Start(context.Background(), p)
	events := drain(t, ch)
	require.Len(t, events, 1)

	rec, _ := h.Get(context.Background(), id)
	assert.Equal(t, model.DownloadStatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "no such stream")
}
