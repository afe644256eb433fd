package cli

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/task"
	"github.com/spf13/cobra"
)

// taskFlags are shared by every command that builds a task invocation.
type taskFlags struct {
	task       string
	order      int
	matrixFile string
	imagePath  string
	network    string
	generation string
	offline    bool
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.task, "task", "t", "", "task to run (matrix_multiply, image_manipulate, grayscale, flip_local, flip_remote)")
	cmd.Flags().IntVarP(&f.order, "order", "n", 100, "order of the random square matrices")
	cmd.Flags().StringVar(&f.matrixFile, "matrix-file", "", "JSON file with matrixA and matrixB (overrides --order)")
	cmd.Flags().StringVarP(&f.imagePath, "image", "i", "", "image to process")
	cmd.Flags().StringVar(&f.network, "network", "wifi", "network type reported by the device (wifi, cellular, ethernet, none)")
	cmd.Flags().StringVar(&f.generation, "generation", "", "cellular generation (2g, 3g, 4g, 5g)")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "report the device as disconnected")
	_ = cmd.MarkFlagRequired("task")
}

func (f *taskFlags) hint() device.NetworkHint {
	return device.NetworkHint{
		Connected:          !f.offline && f.network != "none",
		Type:               f.network,
		CellularGeneration: f.generation,
	}
}

func (f *taskFlags) build() (task.ID, task.Params, error) {
	id, err := task.ParseID(f.task)
	if err != nil {
		return "", nil, err
	}

	switch id.Kind() {
	case task.KindMatrix:
		if f.matrixFile != "" {
			p, err := readMatrixFile(f.matrixFile)
			return id, p, err
		}
		if f.order <= 0 {
			return "", nil, fmt.Errorf("%w: matrix order must be positive", task.InvalidParamsErr)
		}
		return id, task.MatrixParams{A: randomMatrix(f.order), B: randomMatrix(f.order)}, nil
	default:
		if f.imagePath == "" {
			return "", nil, fmt.Errorf("%w: --image is required for %s", task.InvalidParamsErr, id)
		}
		data, err := os.ReadFile(f.imagePath)
		if err != nil {
			return "", nil, err
		}
		return id, task.ImageParams{Name: filepath.Base(f.imagePath), Data: data}, nil
	}
}

func readMatrixFile(path string) (task.MatrixParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return task.MatrixParams{}, err
	}
	var req client.MatrixTaskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return task.MatrixParams{}, fmt.Errorf("%w: %v", task.InvalidParamsErr, err)
	}
	return task.MatrixParams{A: req.MatrixA, B: req.MatrixB}, nil
}

func randomMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			m[i][j] = float64(rand.Intn(10))
		}
	}
	return m
}
