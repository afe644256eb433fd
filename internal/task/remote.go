package task

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/node"
)

// RemoteClient invokes tasks on the remote compute service.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	tr := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     5 * time.Minute,
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: tr, Timeout: timeout},
	}
}

func (c *RemoteClient) BaseURL() string {
	return c.baseURL
}

// Handler returns the remote implementation of a task.
func (c *RemoteClient) Handler(id ID) Handler {
	switch id.Kind() {
	case KindMatrix:
		return func(ctx context.Context, p Params) (Output, error) {
			return c.runMatrix(ctx, id, p)
		}
	case KindImage:
		return func(ctx context.Context, p Params) (Output, error) {
			return c.runImage(ctx, id, p)
		}
	}
	return nil
}

func (c *RemoteClient) runMatrix(ctx context.Context, id ID, p Params) (Output, error) {
	mp, ok := p.(MatrixParams)
	if !ok {
		return Output{}, fmt.Errorf("%w: expected matrices, got %T", InvalidParamsErr, p)
	}
	body, err := json.Marshal(client.MatrixTaskRequest{MatrixA: mp.A, MatrixB: mp.B})
	if err != nil {
		return Output{}, err
	}

	respBody, err := c.invoke(ctx, id, "application/json", bytes.NewReader(body))
	if err != nil {
		return Output{}, err
	}

	raw, _, _, err := jsonparser.Get(respBody, "result")
	if err != nil {
		return Output{}, fmt.Errorf("malformed response from %s: missing result: %w", id, err)
	}
	var result [][]float64
	if err := json.Unmarshal(raw, &result); err != nil {
		return Output{}, fmt.Errorf("malformed response from %s: %w", id, err)
	}
	return Output{Data: result, Server: parseServerTelemetry(respBody)}, nil
}

func (c *RemoteClient) runImage(ctx context.Context, id ID, p Params) (Output, error) {
	ip, ok := p.(ImageParams)
	if !ok {
		return Output{}, fmt.Errorf("%w: expected image, got %T", InvalidParamsErr, p)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	name := ip.Name
	if name == "" {
		name = "upload.jpg"
	}
	part, err := w.CreateFormFile("image", name)
	if err != nil {
		return Output{}, err
	}
	if _, err = part.Write(ip.Data); err != nil {
		return Output{}, err
	}
	if err = w.Close(); err != nil {
		return Output{}, err
	}

	respBody, err := c.invoke(ctx, id, w.FormDataContentType(), &buf)
	if err != nil {
		return Output{}, err
	}

	encoded, err := jsonparser.GetString(respBody, "processed_image")
	if err != nil {
		return Output{}, fmt.Errorf("malformed response from %s: missing processed_image: %w", id, err)
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Output{}, fmt.Errorf("malformed response from %s: %w", id, err)
	}
	return Output{Data: img, Server: parseServerTelemetry(respBody)}, nil
}

func (c *RemoteClient) invoke(ctx context.Context, id ID, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/task/"+string(id), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Printf("Error while closing offload response body: %s\n", err)
		}
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, node.OutOfResourcesErr
		}
		if msg, err := jsonparser.GetString(respBody, "error"); err == nil && msg != "" {
			return nil, fmt.Errorf("remote returned %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("remote returned: %v", resp.StatusCode)
	}
	return respBody, nil
}

// parseServerTelemetry extracts the optional server_* fields; nil when absent.
func parseServerTelemetry(body []byte) *client.ServerTelemetry {
	var st client.ServerTelemetry
	found := false
	if v, err := jsonparser.GetFloat(body, "server_cpu_load"); err == nil {
		st.CPULoad = &v
		found = true
	}
	if v, err := jsonparser.GetFloat(body, "server_memory_percent"); err == nil {
		st.MemoryPercent = &v
		found = true
	}
	if v, err := jsonparser.GetFloat(body, "server_compute_time_ms"); err == nil {
		st.ComputeTimeMs = &v
		found = true
	}
	if !found {
		return nil
	}
	return &st
}
