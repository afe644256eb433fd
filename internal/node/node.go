package node

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/lithammer/shortuuid"
	"github.com/serverledge-faas/offloading/internal/config"
)

var OutOfResourcesErr = errors.New("not enough resources for task execution")

// NodeID identifies a process taking part in offloading: a client device or a
// compute service instance.
type NodeID struct {
	Role string
	Key  string
}

var LocalNode NodeID

func (n NodeID) String() string {
	return fmt.Sprintf("(%s)%s", n.Role, n.Key)
}

func NewIdentifier(role string) NodeID {
	id := shortuuid.New() + strconv.FormatInt(time.Now().UnixNano(), 10)
	return NodeID{Role: role, Key: id}
}

// NewRequestID returns a short identifier used to correlate the log lines,
// trace events and telemetry records of a single execution.
func NewRequestID() string {
	return shortuuid.New()
}

// Resources bounds the number of tasks the compute service runs at once.
type Resources struct {
	sync.Mutex
	totalSlots int
	busySlots  int
}

func (n *Resources) Init() {
	n.Lock()
	defer n.Unlock()
	n.totalSlots = config.GetInt(config.API_MAX_INFLIGHT, 2*runtime.NumCPU())
	n.busySlots = 0
}

func (n *Resources) String() string {
	n.Lock()
	defer n.Unlock()
	return fmt.Sprintf("[Slots: %d/%d]", n.busySlots, n.totalSlots)
}

// Acquire reserves one execution slot, or fails with OutOfResourcesErr.
func (n *Resources) Acquire() error {
	n.Lock()
	defer n.Unlock()
	if n.totalSlots > 0 && n.busySlots >= n.totalSlots {
		return OutOfResourcesErr
	}
	n.busySlots++
	return nil
}

func (n *Resources) Release() {
	n.Lock()
	defer n.Unlock()
	if n.busySlots > 0 {
		n.busySlots--
	}
}

func (n *Resources) BusySlots() int {
	n.Lock()
	defer n.Unlock()
	return n.busySlots
}

func (n *Resources) TotalSlots() int {
	n.Lock()
	defer n.Unlock()
	return n.totalSlots
}

var LocalResources Resources
