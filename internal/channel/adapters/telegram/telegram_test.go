package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/media"
)

const testToken = "123:abc"

type fakeBotAPI struct {
	mu     sync.Mutex
	polls  int
	files  map[string]string
	blobs  map[string][]byte
	update string
	// dropFile closes getFile connections without a response.
	dropFile bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/bot" + testToken + "/getMe":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"mirror","username":"mirror_bot"}}`)
	case "/bot" + testToken + "/getUpdates":
		offset, _ := strconv.Atoi(r.FormValue("offset"))
		f.mu.Lock()
		f.polls++
		f.mu.Unlock()
		if offset <= 100 && f.update != "" {
			_, _ = io.WriteString(w, `{"ok":true,"result":`+f.update+`}`)
			return
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
	case "/bot" + testToken + "/getFile":
		if f.dropFile {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
		}
		path, ok := f.files[r.FormValue("file_id")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: invalid file_id"}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"file_id":%q,"file_unique_id":"u","file_path":%q}}`, r.FormValue("file_id"), path)
	default:
		if blob, ok := f.blobs[strings.TrimPrefix(r.URL.Path, "/file/bot"+testToken+"/")]; ok {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(blob)
			return
		}
		http.NotFound(w, r)
	}
}

func newTestAdapter(t *testing.T, api *fakeBotAPI, maxBytes int64) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		BotToken:     testToken,
		APIEndpoint:  srv.URL + "/bot%s/%s",
		FileEndpoint: srv.URL + "/file/bot%s/%s",
		PollTimeout:  1,
		MaxBytes:     maxBytes,
	})
}

func TestResolvePathAndDownload(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{

		files: map[string]string{"photo-id": "photos/file_1.jpg"},
		blobs: map[string][]byte{"photos/file_1.jpg": []byte("jpeg-bytes")},
	}
	a := newTestAdapter(t, api, 0)

	path, err := a.ResolvePath(context.Background(), "photo-id")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if path != "photos/file_1.jpg" {
		t.Fatalf("unexpected path %q", path)
	}
	data, err := a.Download(context.Background(), path, 10)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected data %q", data)
	}

	if _, err := a.ResolvePath(context.Background(), "gone"); !errors.Is(err, channel.ErrFileNotFound) {
		t.Fatalf("unknown file error = %v, want ErrFileNotFound", err)
	}
	if _, err := a.Download(context.Background(), "photos/missing.jpg", 0); !errors.Is(err, channel.ErrNetworkFailure) {
		t.Fatalf("missing download error = %v, want ErrNetworkFailure", err)
	}
}

func TestTransportErrorsHideBotToken(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, &fakeBotAPI{dropFile: true}, 0)
	_, err := a.ResolvePath(context.Background(), "photo-id")
	if !errors.Is(err, channel.ErrNetworkFailure) {
		t.Fatalf("dropped getFile error = %v, want ErrNetworkFailure", err)
	}
	if strings.Contains(err.Error(), testToken) {
		t.Fatalf("error leaks bot token: %v", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	offline := NewAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		BotToken:     testToken,
		APIEndpoint:  closed.URL + "/bot%s/%s",
		FileEndpoint: closed.URL + "/file/bot%s/%s",
	})
	_, err = offline.Download(context.Background(), "docs/a.pdf", 0)
	if !errors.Is(err, channel.ErrNetworkFailure) || strings.Contains(err.Error(), testToken) {
		t.Fatalf("offline download error = %v", err)
	}
	if _, err := offline.ResolvePath(context.Background(), "photo-id"); err == nil || strings.Contains(err.Error(), testToken) {
		t.Fatalf("offline resolve error = %v", err)
	}
}

func TestStripRequestURL(t *testing.T) {
	t.Parallel()

	err := stripRequestURL(&url.Error{Op: "Post", URL: "https://api.telegram.org/bot" + testToken + "/getUpdates", Err: io.ErrUnexpectedEOF})
	if strings.Contains(err.Error(), testToken) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("stripRequestURL = %v", err)
	}
	plain := errors.New("bad gateway")
	if stripRequestURL(plain) != plain {
		t.Fatalf("non-transport errors must pass through")
	}
}

func TestDownloadRespectsLimit(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{blobs: map[string][]byte{"docs/big.bin": []byte(strings.Repeat("x", 64))}}
	a := newTestAdapter(t, api, 16)

	_, err := a.Download(context.Background(), "docs/big.bin", 0)
	if !errors.Is(err, channel.ErrNetworkFailure) || !errors.Is(err, media.ErrAssetTooLarge) {
		t.Fatalf("download error = %v, want network failure wrapping ErrAssetTooLarge", err)
	}
}

const channelPostUpdates = `[
  {"update_id":100,"channel_post":{"message_id":7,"date":1700000000,
    "chat":{"id":-1001765404638,"type":"channel","title":"news"},
    "caption":"look","photo":[
      {"file_id":"s","file_unique_id":"us","width":90,"height":90,"file_size":100},
      {"file_id":"l","file_unique_id":"ul","width":1280,"height":1280,"file_size":9000}]}},
  {"update_id":101,"channel_post":{"message_id":8,"date":1700000001,
    "chat":{"id":-1001765404638,"type":"channel"},
    "sticker":{"file_id":"st","file_unique_id":"ust","width":512,"height":512,"is_animated":false,"is_video":true,"file_size":300}}}
]`

func TestConnectDeliversChannelPosts(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{update: channelPostUpdates}
	a := newTestAdapter(t, api, 0)

	var mu sync.Mutex
	var got []channel.IncomingMessage
	conn, err := a.Connect(context.Background(), func(_ context.Context, msg channel.IncomingMessage) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 posts, got %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if conn.Running() {
		t.Fatalf("connection still running after stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("posts redelivered after offset advance: %d", len(got))
	}
	first := got[0]
	if first.ChannelID != -1001765404638 || first.MessageID != 7 || first.Text != "look" {
		t.Fatalf("unexpected first post: %+v", first)
	}
	if len(first.Photo) != 2 || first.Photo[1].FileID != "l" || first.Photo[1].Size != 9000 {
		t.Fatalf("unexpected photo variants: %+v", first.Photo)
	}
	if got[1].Sticker == nil || !got[1].Sticker.IsVideo || got[1].Sticker.IsAnimated {
		t.Fatalf("sticker flags lost: %+v", got[1].Sticker)
	}
}

func TestDecodeUpdatesSkipsNonChannelPosts(t *testing.T) {
	t.Parallel()

	raw := []byte(`[
	  {"update_id":5,"message":{"message_id":1,"date":1,"chat":{"id":42,"type":"private"},"text":"hi"}},
	  {"update_id":6,"channel_post":{"message_id":2,"date":1,"chat":{"id":-5,"type":"channel"},"text":"body","caption":"ignored"}}
	]`)
	updates, err := decodeUpdates(raw, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(updates) != 2 || updates[0].ID != 5 || updates[0].Post != nil {
		t.Fatalf("private message must be skipped but counted: %+v", updates)
	}
	if updates[1].Post == nil || updates[1].Post.Text != "body" || updates[1].Post.Sticker != nil {
		t.Fatalf("unexpected channel post: %+v", updates[1].Post)
	}
}
