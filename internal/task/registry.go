package task

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Registry maps task ids to their handlers. It is populated at startup and
// frozen before use; lookups afterwards need no locking.
type Registry struct {
	tasks  map[ID]Descriptor
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[ID]Descriptor)}
}

// Register adds (or replaces) a task. remote may be nil.
func (r *Registry) Register(id ID, local Handler, remote Handler) error {
	if r.frozen {
		return FrozenRegistryErr
	}
	if !id.Valid() {
		return fmt.Errorf("%w: %q", UnknownTaskErr, string(id))
	}
	if local == nil {
		return fmt.Errorf("%w: %s", MissingLocalHandlerErr, id)
	}
	r.tasks[id] = Descriptor{ID: id, Local: local, Remote: remote}
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

func (r *Registry) Lookup(id ID) (Descriptor, error) {
	d, ok := r.tasks[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", UnknownTaskErr, string(id))
	}
	return d, nil
}

func (r *Registry) ResolveLocal(id ID) (Handler, error) {
	d, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return d.Local, nil
}

func (r *Registry) ResolveRemote(id ID) (Handler, error) {
	d, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	if d.Remote == nil {
		return nil, fmt.Errorf("%w: %s", NoRemoteHandlerErr, id)
	}
	return d.Remote, nil
}

// IDs returns the registered ids in lexical order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NewDefaultRegistry registers every known task with its local implementation
// and, when remote is not nil, its remote route. flip_local never offloads.
func NewDefaultRegistry(remote *RemoteClient) (*Registry, error) {
	r := NewRegistry()
	for _, id := range AllIDs() {
		var remoteHandler Handler
		if remote != nil && id != FlipLocal {
			remoteHandler = remote.Handler(id)
		}
		if err := r.Register(id, LocalHandler(id), remoteHandler); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}

// LocalHandler returns the in-process implementation of a task.
func LocalHandler(id ID) Handler {
	switch id {
	case MatrixMultiply:
		return MultiplyLocally
	case ImageManipulate:
		return ManipulateLocally
	case Grayscale:
		return GrayscaleLocally
	case FlipLocal, FlipRemote:
		return FlipLocally
	}
	return nil
}
