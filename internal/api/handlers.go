package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/metrics"
	"github.com/serverledge-faas/offloading/internal/node"
	"github.com/serverledge-faas/offloading/internal/task"
	"github.com/serverledge-faas/offloading/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxImageBytes bounds multipart uploads.
var maxImageBytes int64 = 32 << 20

var ImageTooLargeErr = errors.New("image too large")

// RunTask executes a task on behalf of a client that decided to offload it.
func RunTask(c echo.Context) error {
	id, err := task.ParseID(c.Param("task"))
	if err != nil {
		return c.JSON(http.StatusNotFound, client.ErrorResponse{Error: err.Error()})
	}

	ctx := c.Request().Context()
	if telemetry.DefaultTracer != nil {
		var span trace.Span
		ctx, span = telemetry.DefaultTracer.Start(ctx, "run_task", trace.WithAttributes(attribute.String("task", string(id))))
		defer span.End()
	}

	if err := node.LocalResources.Acquire(); err != nil {
		log.Printf("[%s] dropping request: %v\n", id, err)
		metrics.AddServedTask(string(id), "dropped", 0)
		return c.JSON(http.StatusTooManyRequests, client.ErrorResponse{Error: err.Error()})
	}
	defer node.LocalResources.Release()

	params, err := readParams(c, id)
	if err != nil {
		metrics.AddServedTask(string(id), "invalid", 0)
		if errors.Is(err, ImageTooLargeErr) {
			return c.JSON(http.StatusRequestEntityTooLarge, client.ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusBadRequest, client.ErrorResponse{Error: err.Error()})
	}

	start := time.Now()
	out, err := task.LocalHandler(id)(ctx, params)
	computeTime := time.Since(start)
	trace.SpanFromContext(ctx).AddEvent("Task computed",
		trace.WithAttributes(attribute.Int64("compute_time_us", computeTime.Microseconds())))
	if err != nil {
		log.Printf("[%s] execution failed: %v\n", id, err)
		if errors.Is(err, task.InvalidParamsErr) || errors.Is(err, task.IncompatibleDimensionsErr) {
			metrics.AddServedTask(string(id), "invalid", 0)
			return c.JSON(http.StatusBadRequest, client.ErrorResponse{Error: err.Error()})
		}
		metrics.AddServedTask(string(id), "failed", 0)
		return c.JSON(http.StatusInternalServerError, client.ErrorResponse{Error: err.Error()})
	}
	metrics.AddServedTask(string(id), "ok", computeTime.Seconds())

	serverTelemetry := currentTelemetry(computeTime)
	switch data := out.Data.(type) {
	case [][]float64:
		return c.JSON(http.StatusOK, client.MatrixTaskResponse{Result: data, ServerTelemetry: serverTelemetry})
	case []byte:
		return c.JSON(http.StatusOK, client.ImageTaskResponse{
			ProcessedImage:  base64.StdEncoding.EncodeToString(data),
			ServerTelemetry: serverTelemetry,
		})
	}
	return c.JSON(http.StatusInternalServerError, client.ErrorResponse{Error: "unexpected task output"})
}

func readParams(c echo.Context, id task.ID) (task.Params, error) {
	switch id.Kind() {
	case task.KindMatrix:
		var req client.MatrixTaskRequest
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return nil, errors.Join(task.InvalidParamsErr, err)
		}
		if req.MatrixA == nil || req.MatrixB == nil {
			return nil, errors.Join(task.InvalidParamsErr, errors.New("matrixA and matrixB are required"))
		}
		return task.MatrixParams{A: req.MatrixA, B: req.MatrixB}, nil
	default:
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, errors.Join(task.InvalidParamsErr, errors.New("no image file provided"))
		}
		if fh.Size > maxImageBytes {
			return nil, fmt.Errorf("%w: %d bytes, limit is %d", ImageTooLargeErr, fh.Size, maxImageBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > maxImageBytes {
			return nil, fmt.Errorf("%w: limit is %d bytes", ImageTooLargeErr, maxImageBytes)
		}
		return task.ImageParams{Name: fh.Filename, Data: data}, nil
	}
}

func Ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// GetServerStatus reports the current load of this node.
func GetServerStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, readStatus())
}
