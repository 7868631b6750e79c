package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// starskyHandler отвечает так же, как эндпоинты сервиса, на которые навешен gzip.
func starskyHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/user/credits":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"credits":2,"unlimited":false}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/stars":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"s1","name":"Vega","x":12.5,"y":40}]`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/stars":
		body, err := io.ReadAll(r.Body)
		if err != nil || !strings.Contains(string(body), `"name":"Vega"`) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"outcome":"created","starId":"s1"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/stars/taken":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"outcome":"name_conflict"}`))
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		statusCode      int
		contentEncoding string
		body            string
	}

	tests := []struct {
		name           string
		method         string
		target         string
		requestBody    string
		compressBody   bool
		acceptEncoding string
		want           want
	}{
		{
			name:           "credits compressed for gzip client",
			method:         http.MethodGet,
			target:         "/api/user/credits",
			acceptEncoding: "gzip, deflate, br",
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				body:            `{"credits":2,"unlimited":false}`,
			},
		},
		{
			name:   "star list plain without Accept-Encoding",
			method: http.MethodGet,
			target: "/api/stars",
			want: want{
				statusCode: http.StatusOK,
				body:       `[{"id":"s1","name":"Vega","x":12.5,"y":40}]`,
			},
		},
		{
			name:           "gzipped star creation body",
			method:         http.MethodPost,
			target:         "/api/stars",
			requestBody:    `{"name":"Vega","message":"for you"}`,
			compressBody:   true,
			acceptEncoding: "gzip",
			want: want{
				statusCode:      http.StatusCreated,
				contentEncoding: "gzip",
				body:            `{"outcome":"created","starId":"s1"}`,
			},
		},
		{
			name:           "conflict is not compressed",
			method:         http.MethodPost,
			target:         "/api/stars/taken",
			requestBody:    `{"name":"Vega"}`,
			acceptEncoding: "gzip",
			want: want{
				statusCode: http.StatusConflict,
				body:       `{"outcome":"name_conflict"}`,
			},
		},
		{
			name:           "deleted star has no body",
			method:         http.MethodDelete,
			target:         "/api/stars/s1",
			acceptEncoding: "gzip",
			want: want{
				statusCode: http.StatusNoContent,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(tt.requestBody)
			if tt.compressBody {
				var buf bytes.Buffer
				gz := gzip.NewWriter(&buf)
				_, err := gz.Write([]byte(tt.requestBody))
				require.NoError(t, err)
				require.NoError(t, gz.Close())
				requestBody = &buf
			}

			req := httptest.NewRequest(tt.method, tt.target, requestBody)
			if tt.compressBody {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(starskyHandler)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			assert.Equal(t, tt.want.statusCode, res.StatusCode)
			assert.Equal(t, tt.want.contentEncoding, res.Header.Get("Content-Encoding"))
			assert.Equal(t, tt.want.body, readBody(t, res))
		})
	}
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()

	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer gr.Close()
		r = gr
	}
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(body)
}

func TestGzipMiddleware_ImplicitStatusIsCompressed(t *testing.T) {
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"credits":3}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/credits", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
	assert.Equal(t, `{"credits":3}`, readBody(t, res))
}

func TestGzipMiddleware_SkipsEventStream(t *testing.T) {
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: star_created\n\n"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stars/events", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "event: star_created\n\n", w.Body.String())
}

func TestGzipMiddleware_RejectsBrokenBody(t *testing.T) {
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/stars", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGzipMiddleware_FlushesStreamingResponse(t *testing.T) {
	const event = "event: star_created\ndata: {\"name\":\"Vega\"}\n\n"

	rec := httptest.NewRecorder()
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok, "gzip writer must support streaming")

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(event))
		flusher.Flush()

		// До завершения обработчика клиент уже может распаковать событие.
		zr, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		got := make([]byte, len(event))
		_, err = io.ReadFull(zr, got)
		require.NoError(t, err)
		assert.Equal(t, event, string(got))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stars/events", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	h.ServeHTTP(rec, req)

	assert.True(t, rec.Flushed)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, event, readBody(t, rec.Result()))
}

func TestGzipMiddleware_NoContentHasNoGzipFooter(t *testing.T) {
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/stars/s1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Zero(t, w.Body.Len())
}
