package widget

import (
	"context"
	"strconv"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/hyprland"
)

// ColorActiveWorkspace marks the focused workspace.
const ColorActiveWorkspace Color = "#ffc0cb"

// Workspaces shows the fixed row of workspace slots.
type Workspaces struct {
	base
	ctx        context.Context
	dispatcher hyprland.Dispatcher
	slots      []hyprland.Slot
	special    string
}

// NewWorkspaces creates a Workspaces widget. Switch commands run under ctx.
func NewWorkspaces(ctx context.Context, inv Invalidator, dispatcher hyprland.Dispatcher) *Workspaces {
	return &Workspaces{
		base:       newBase(inv),
		ctx:        ctx,
		dispatcher: dispatcher,
		slots:      hyprland.Data{}.Slots(),
	}
}

// Name implements Widget.
func (w *Workspaces) Name() string { return "workspaces" }

// Apply implements the snapshot update.
func (w *Workspaces) Apply(d hyprland.Data) {
	w.update(func() {
		w.slots = d.Slots()
		w.special = d.Special
	})
}

// Switch focuses workspace id. A negative id is clamped to 0 before it
// indexes the slot row, so every special workspace lands on slot 0. The
// target slot is marked active at once; the next snapshot confirms it.
func (w *Workspaces) Switch(id int) {
	if id < 0 {
		id = 0
	}
	if !w.update(func() {
		if id >= len(w.slots) {
			return
		}
		for i := range w.slots {
			w.slots[i].Active = i == id
		}
		w.slots[id].Visible = true
	}) {
		return
	}
	go func() {
		mgs.CommandError(w.ctx, "dispatch", hyprland.Switch(w.ctx, w.dispatcher, id))
	}()
}

// Click implements Clicker. Instances are slot indexes.
func (w *Workspaces) Click(instance string, button int) {
	if button != ButtonLeft {
		return
	}
	id, err := strconv.Atoi(instance)
	if err != nil {
		return
	}
	w.Switch(id)
}

// Slots returns a copy of the slot row.
func (w *Workspaces) Slots() []hyprland.Slot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]hyprland.Slot(nil), w.slots...)
}

// View implements Widget. Only visible slots are drawn.
func (w *Workspaces) View() []Block {
	w.mu.Lock()
	defer w.mu.Unlock()

	var blocks []Block
	for _, s := range w.slots {
		if !s.Visible {
			continue
		}
		label := s.Label
		if s.Index == 0 && w.special != "" {
			label = w.special
		}
		b := Block{Name: w.Name(), Instance: strconv.Itoa(s.Index), Text: label}
		if s.Active {
			b.Color = ColorActiveWorkspace
		}
		blocks = append(blocks, b)
	}
	return blocks
}
