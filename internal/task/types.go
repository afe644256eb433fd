package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/serverledge-faas/offloading/internal/client"
)

var UnknownTaskErr = errors.New("unknown task")
var NoRemoteHandlerErr = errors.New("task has no remote handler")
var MissingLocalHandlerErr = errors.New("task must have a local handler")
var FrozenRegistryErr = errors.New("registry is read-only")
var InvalidParamsErr = errors.New("invalid parameters for task")

// ID identifies a task. The set of ids is closed: every id is listed in
// AllIDs and handled by the switches in this package.
type ID string

const (
	MatrixMultiply  ID = "matrix_multiply"
	ImageManipulate ID = "image_manipulate"
	Grayscale       ID = "grayscale"
	FlipLocal       ID = "flip_local"
	FlipRemote      ID = "flip_remote"
)

// Kind groups tasks by the shape of their payload.
type Kind int

const (
	KindMatrix Kind = iota
	KindImage
)

func AllIDs() []ID {
	return []ID{MatrixMultiply, ImageManipulate, Grayscale, FlipLocal, FlipRemote}
}

func ParseID(s string) (ID, error) {
	id := ID(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", UnknownTaskErr, s)
	}
	return id, nil
}

func (id ID) Valid() bool {
	switch id {
	case MatrixMultiply, ImageManipulate, Grayscale, FlipLocal, FlipRemote:
		return true
	}
	return false
}

func (id ID) Kind() Kind {
	switch id {
	case MatrixMultiply:
		return KindMatrix
	case ImageManipulate, Grayscale, FlipLocal, FlipRemote:
		return KindImage
	}
	panic(fmt.Sprintf("task kind not defined for %q", string(id)))
}

func (id ID) String() string {
	return string(id)
}

// Complexity holds the size metrics used by decision policies.
// A zero field means the metric does not apply to the task.
type Complexity struct {
	MatrixOrder int
	ImageSizeKB float64
}

// Params is the task payload. The framework only reads its complexity.
type Params interface {
	Complexity() Complexity
}

// Output is what a handler produces. Data is task specific:
// [][]float64 for matrix tasks, JPEG bytes for image tasks.
type Output struct {
	Data   interface{}
	Server *client.ServerTelemetry
}

type Handler func(ctx context.Context, p Params) (Output, error)

// Descriptor binds a task to its implementations. Local is always set.
type Descriptor struct {
	ID     ID
	Local  Handler
	Remote Handler
}

func (d Descriptor) HasRemote() bool {
	return d.Remote != nil
}
