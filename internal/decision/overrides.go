package decision

import (
	"fmt"
	"log"
	"strings"

	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/task"
	"golang.org/x/exp/maps"
)

// Pin forces a task to one side regardless of conditions (except connectivity).
type Pin string

const (
	PinLocal  Pin = "local"
	PinRemote Pin = "remote"
)

func ParsePin(s string) (Pin, error) {
	switch Pin(strings.ToLower(strings.TrimSpace(s))) {
	case PinLocal:
		return PinLocal, nil
	case PinRemote:
		return PinRemote, nil
	}
	return "", fmt.Errorf("invalid pin %q (expected local or remote)", s)
}

// Overrides is the reviewable table of per-task pins.
type Overrides map[task.ID]Pin

// DefaultOverrides pins the two flip variants, whose names state where they run.
// Grayscale is left to the policy.
func DefaultOverrides() Overrides {
	return Overrides{
		task.FlipLocal:  PinLocal,
		task.FlipRemote: PinRemote,
	}
}

// Lookup returns the pin of a task, if any.
func (o Overrides) Lookup(id task.ID) (Pin, bool) {
	p, ok := o[id]
	return p, ok
}

// Clone returns an independent copy; policies keep their own.
func (o Overrides) Clone() Overrides {
	if o == nil {
		return Overrides{}
	}
	return maps.Clone(o)
}

// ParseOverrides validates a task -> pin table; invalid entries are reported
// and skipped.
func ParseOverrides(raw map[string]string) (Overrides, []error) {
	o := Overrides{}
	var errs []error
	for name, value := range raw {
		id, err := task.ParseID(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pin, err := ParsePin(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		o[id] = pin
	}
	return o, errs
}

// LoadOverrides reads the table from config; the defaults apply when the key is unset.
func LoadOverrides() Overrides {
	defaults := map[string]string{}
	for id, pin := range DefaultOverrides() {
		defaults[string(id)] = string(pin)
	}
	o, errs := ParseOverrides(config.GetStringMapString(config.DECISION_OVERRIDES, defaults))
	for _, err := range errs {
		log.Printf("Ignoring override: %v\n", err)
	}
	return o
}

func overrideDecision(o Overrides, id task.ID) (Decision, bool) {
	pin, ok := o.Lookup(id)
	if !ok {
		return Decision{}, false
	}
	if pin == PinRemote {
		return remote(SourceOverride, "%s pinned remote by override", id), true
	}
	return local(SourceOverride, "%s pinned local by override", id), true
}
