package hyprland

import (
	"math"
	"slices"
	"strconv"
)

// Data is a workspaces snapshot. Workspaces are ordered by ID, so special
// workspaces (negative IDs) come first.
type Data struct {
	Workspaces []Workspace
	Active     int
	// Special is the display name of the open special workspace, or "".
	Special string
}

// Clone implements mgs.Cloner.
func (d Data) Clone() Data {
	d.Workspaces = slices.Clone(d.Workspaces)
	return d
}

// Lookup returns the workspace with the given ID.
func (d Data) Lookup(id int) (Workspace, bool) {
	i, ok := slices.BinarySearchFunc(d.Workspaces, id, compareID)
	if !ok {
		return Workspace{}, false
	}
	return d.Workspaces[i], true
}

// SlotCount is the size of the fixed workspace row: one special slot and
// workspaces 1 through 10.
const SlotCount = 11

// Slot is one button of the fixed workspace row.
type Slot struct {
	Index   int
	Label   string
	Visible bool
	Active  bool
}

// SlotIndex maps a workspace ID to its slot. Every negative ID collapses
// onto slot 0. IDs past the row report false.
func SlotIndex(id int) (int, bool) {
	if id < 0 {
		id = 0
	}
	if id >= SlotCount {
		return 0, false
	}
	return id, true
}

// Slots renders the fixed eleven-slot row: slot 0 labeled "S", the rest by
// number. A slot is visible when a workspace maps onto it.
func (d Data) Slots() []Slot {
	slots := make([]Slot, SlotCount)
	for i := range slots {
		slots[i] = Slot{Index: i, Label: strconv.Itoa(i)}
	}
	slots[0].Label = "S"

	for _, ws := range d.Workspaces {
		if i, ok := SlotIndex(ws.ID); ok {
			slots[i].Visible = true
		}
	}
	if i, ok := SlotIndex(d.Active); ok {
		slots[i].Active = true
		slots[i].Visible = true
	}
	return slots
}

// SlotCommand is the dispatcher that focuses slot: slot 0 toggles the
// special workspace, the others switch by number.
func SlotCommand(slot int) string {
	if slot <= 0 {
		return "togglespecialworkspace"
	}
	return "workspace " + strconv.Itoa(slot)
}

func compareID(ws Workspace, id int) int {
	return ws.ID - id
}

// state is the workspace aggregate: a map keyed by ID plus the ID order.
// It is owned by a single goroutine and applies one change per event.
type state struct {
	order   []int
	byID    map[int]Workspace
	active  int
	special string
}

func newState(list []Workspace, active Workspace) *state {
	s := &state{byID: make(map[int]Workspace, len(list)), active: active.ID}
	for _, ws := range list {
		s.put(ws)
	}
	if _, ok := s.byID[active.ID]; !ok {
		s.put(active)
	}
	return s
}

func (s *state) put(ws Workspace) {
	if _, ok := s.byID[ws.ID]; !ok {
		i, _ := slices.BinarySearch(s.order, ws.ID)
		s.order = slices.Insert(s.order, i, ws.ID)
	}
	s.byID[ws.ID] = ws
}

func (s *state) remove(id int) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	if i, ok := slices.BinarySearch(s.order, id); ok {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// idByName finds a known workspace by name.
func (s *state) idByName(name string) (int, bool) {
	for _, id := range s.order {
		if s.byID[id].Name == name {
			return id, true
		}
	}
	return 0, false
}

// resolve fills in the ID of a change that only names its workspace.
// Unknown numeric names are their own ID. It reports false when the
// workspace cannot be identified and the list must be reloaded.
func (s *state) resolve(c *change) bool {
	if !c.byName {
		return true
	}
	if id, ok := s.idByName(c.name); ok {
		c.id = id
		return true
	}
	switch c.kind {
	case changeDestroy:
		// Already gone; apply finds nothing to remove.
		c.id = math.MinInt
		return true
	case changeFocus, changeCreate:
		if id, err := strconv.Atoi(c.name); err == nil {
			c.id = id
			return true
		}
	}
	return false
}

// apply performs one transition and reports whether the aggregate changed.
func (s *state) apply(c change) bool {
	switch c.kind {
	case changeFocus:
		_, known := s.byID[c.id]
		if s.active == c.id && known {
			return false
		}
		if !known {
			s.put(Workspace{ID: c.id, Name: c.name})
		}
		s.active = c.id
		return true

	case changeCreate:
		if ws, ok := s.byID[c.id]; ok && ws.Name == c.name {
			return false
		}
		ws := s.byID[c.id]
		ws.ID, ws.Name = c.id, c.name
		s.put(ws)
		return true

	case changeDestroy:
		if _, ok := s.byID[c.id]; !ok {
			return false
		}
		s.remove(c.id)
		return true

	case changeMove:
		ws, ok := s.byID[c.id]
		if !ok || ws.Monitor == c.monitor {
			return false
		}
		ws.Monitor = c.monitor
		s.byID[c.id] = ws
		return true

	case changeRename:
		ws, ok := s.byID[c.id]
		if !ok || ws.Name == c.name {
			return false
		}
		ws.Name = c.name
		s.byID[c.id] = ws
		return true

	case changeSpecial:
		name := DisplayName(c.name)
		if s.special == name {
			return false
		}
		s.special = name
		return true
	}
	return false
}

func (s *state) snapshot() Data {
	d := Data{
		Workspaces: make([]Workspace, 0, len(s.order)),
		Active:     s.active,
		Special:    s.special,
	}
	for _, id := range s.order {
		d.Workspaces = append(d.Workspaces, s.byID[id])
	}
	return d
}
