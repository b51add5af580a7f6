// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"sync"
	"sync/atomic"
)

// Phase represents the firmware services phase.
type Phase uint32

const (
	// BootPhase indicates that both EFI Boot and Runtime Services are
	// available.
	BootPhase Phase = iota
	// RuntimePhase indicates that only EFI Runtime Services are available,
	// it is entered once EFI Boot Services are exited and never left.
	RuntimePhase
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case BootPhase:
		return "boot"
	case RuntimePhase:
		return "runtime"
	default:
		return "invalid"
	}
}

// guard tracks the boot/runtime phase and the protocol capabilities which
// are open on firmware side.
type guard struct {
	phase atomic.Uint32
	// held for reading across each EFI Boot Services call and for writing
	// across ExitBootServices()
	calls sync.RWMutex

	mu   sync.Mutex
	open map[*binding]struct{}
}

// Phase returns the current phase.
func (g *guard) Phase() Phase {
	return Phase(g.phase.Load())
}

// do runs fn, which must not re-enter the guard, while BootPhase is held.
// [ErrUnsupported] is returned without running fn once the transition
// happened.
func (g *guard) do(fn func()) error {
	g.calls.RLock()
	defer g.calls.RUnlock()

	if g.Phase() != BootPhase {
		return ErrUnsupported
	}

	fn()

	return nil
}

// transition runs fn with exclusive access to the boot phase and moves to
// RuntimePhase if it succeeds, on failure the phase is left unchanged.
func (g *guard) transition(fn func() error) (err error) {
	g.calls.Lock()
	defer g.calls.Unlock()

	if g.Phase() != BootPhase {
		return ErrUnsupported
	}

	if err = fn(); err != nil {
		return
	}

	g.phase.Store(uint32(RuntimePhase))

	return
}

func (g *guard) track(b *binding) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open == nil {
		g.open = make(map[*binding]struct{})
	}

	g.open[b] = struct{}{}
}

func (g *guard) untrack(b *binding) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.open, b)
}

// outstanding returns the number of open capabilities.
func (g *guard) outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.open)
}

// exclusive reports whether an open capability holds the argument handle and
// protocol under an exclusive attribute.
func (g *guard) exclusive(handle Handle, guid GUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for b := range g.open {
		if b.handle == handle && b.guid == guid && b.attributes&exclusiveAttributes != 0 {
			return true
		}
	}

	return false
}
