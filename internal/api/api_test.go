package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/node"
	"github.com/serverledge-faas/offloading/internal/task"
	"github.com/serverledge-faas/offloading/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	node.LocalResources.Init()
	e := echo.New()
	RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func jpegBytes(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestPing(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMatrixTask(t *testing.T) {
	srv := newServer(t)
	body := `{"matrixA":[[1,2],[3,4]],"matrixB":[[5,6],[7,8]]}`
	resp, err := http.Post(srv.URL+"/task/matrix_multiply", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out client.MatrixTaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, [][]float64{{19, 22}, {43, 50}}, out.Result)
	require.NotNil(t, out.ComputeTimeMs)
}

func TestMatrixTaskErrors(t *testing.T) {
	srv := newServer(t)
	for body, code := range map[string]int{
		`{"matrixA":[[1,2,3]],"matrixB":[[1,2]]}`: http.StatusBadRequest,
		`{"matrixA":[[1]]}`:                       http.StatusBadRequest,
		`garbage`:                                 http.StatusBadRequest,
	} {
		resp, err := http.Post(srv.URL+"/task/matrix_multiply", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, code, resp.StatusCode, body)
		var e client.ErrorResponse
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
		assert.NotEmpty(t, e.Error)
		resp.Body.Close()
	}

	resp, err := http.Post(srv.URL+"/task/blur", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Server telemetry must not add noticeable latency to a response.
func TestResponseLatencyTracksComputeTime(t *testing.T) {
	srv := newServer(t)
	body := `{"matrixA":[[1,2],[3,4]],"matrixB":[[5,6],[7,8]]}`

	for i := 0; i < 3; i++ {
		start := time.Now()
		resp, err := http.Post(srv.URL+"/task/matrix_multiply", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		var out client.MatrixTaskResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()
		roundTrip := time.Since(start)

		require.NotNil(t, out.ComputeTimeMs)
		overhead := float64(roundTrip.Microseconds())/1000.0 - *out.ComputeTimeMs
		assert.Less(t, overhead, 50.0)
	}
}

func postImage(t *testing.T, url string, data []byte) *http.Response {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "a.jpg")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := http.Post(url, w.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestImageTooLarge(t *testing.T) {
	srv := newServer(t)
	small, big := jpegBytes(t, 4, 4), jpegBytes(t, 400, 400)
	require.Greater(t, len(big), len(small))
	old := maxImageBytes
	maxImageBytes = int64(len(small))
	defer func() { maxImageBytes = old }()

	resp := postImage(t, srv.URL+"/task/grayscale", big)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	var e client.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Contains(t, e.Error, ImageTooLargeErr.Error())

	ok := postImage(t, srv.URL+"/task/grayscale", small)
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestRunTaskIsTraced(t *testing.T) {
	out := filepath.Join(t.TempDir(), "traces.json")
	shutdown, err := telemetry.SetupOTelSDK(context.Background(), out)
	require.NoError(t, err)
	defer func() { telemetry.DefaultTracer = nil }()

	srv := newServer(t)
	resp, err := http.Post(srv.URL+"/task/matrix_multiply", "application/json",
		strings.NewReader(`{"matrixA":[[1]],"matrixB":[[2]]}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_task"`)
	assert.Contains(t, string(data), "Task computed")
}

// The remote client used by devices must understand the service responses.
func TestRemoteClientRoundTrip(t *testing.T) {
	srv := newServer(t)
	rc := task.NewRemoteClient(srv.URL, 5*time.Second)

	out, err := rc.Handler(task.MatrixMultiply)(context.Background(), task.MatrixParams{
		A: [][]float64{{1, 2}, {3, 4}},
		B: [][]float64{{5, 6}, {7, 8}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{19, 22}, {43, 50}}, out.Data)
	require.NotNil(t, out.Server)
	assert.NotNil(t, out.Server.ComputeTimeMs)

	out, err = rc.Handler(task.ImageManipulate)(context.Background(), task.ImageParams{Name: "a.jpg", Data: jpegBytes(t, 40, 20)})
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(out.Data.([]byte)))
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 1200, img.Bounds().Dy())

	_, err = rc.Handler(task.Grayscale)(context.Background(), task.ImageParams{Name: "a.jpg", Data: []byte("not an image")})
	assert.Error(t, err)
}

func TestOutOfResources(t *testing.T) {
	srv := newServer(t)
	config.Set(config.API_MAX_INFLIGHT, 1)
	defer config.Set(config.API_MAX_INFLIGHT, 0)
	node.LocalResources.Init()
	require.NoError(t, node.LocalResources.Acquire())
	defer node.LocalResources.Release()

	rc := task.NewRemoteClient(srv.URL, time.Second)
	_, err := rc.Handler(task.MatrixMultiply)(context.Background(), task.MatrixParams{A: [][]float64{{1}}, B: [][]float64{{1}}})
	assert.True(t, errors.Is(err, node.OutOfResourcesErr))
}

func TestServerStatus(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status client.ServerStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, node.LocalResources.TotalSlots(), status.TotalSlots)
	assert.GreaterOrEqual(t, status.MemoryPercent, 0.0)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, log.DEBUG, parseLogLevel("Debug"))
	assert.Equal(t, log.INFO, parseLogLevel("whatever"))
}

func TestListenLimitsConnections(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", 1)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{}, 2)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- struct{}{}
			_ = c
		}
	}()

	c1, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c1.Close()
	c2, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c2.Close()

	<-accepted
	select {
	case <-accepted:
		t.Fatal("second connection accepted above the limit")
	case <-time.After(200 * time.Millisecond):
	}
}
