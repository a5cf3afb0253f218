package hyprland

import (
	"strconv"
	"strings"
)

// Event is one line of the event socket, "NAME>>DATA".
type Event struct {
	Name string
	Data string
}

// ParseEvent splits an event line. Lines without the separator are rejected.
func ParseEvent(line string) (Event, bool) {
	name, data, ok := strings.Cut(line, ">>")
	if !ok || name == "" {
		return Event{}, false
	}
	return Event{Name: name, Data: data}, true
}

type changeKind int

const (
	changeFocus changeKind = iota + 1
	changeCreate
	changeDestroy
	changeMove
	changeRename
	changeSpecial
)

// change is an event decoded into the workspace operation it implies.
// Changes from the name-only events carry byName; state.resolve fills in
// the ID before they are applied.
type change struct {
	kind    changeKind
	id      int
	name    string
	monitor string
	byName  bool
}

// decode turns the events the workspace state cares about into changes.
//
// workspace, createworkspace, destroyworkspace and moveworkspace arrive
// through hyprland-go's handler and carry only the workspace name.
// renameworkspace ("ID,NAME") and activespecial ("NAME,MONITOR") are read
// from the raw event stream; names may themselves contain commas.
func decode(ev Event) (change, bool) {
	switch ev.Name {
	case "workspace":
		return named(changeFocus, ev.Data)
	case "createworkspace":
		return named(changeCreate, ev.Data)
	case "destroyworkspace":
		return named(changeDestroy, ev.Data)
	case "moveworkspace":
		// NAME,MONITOR
		i := strings.LastIndexByte(ev.Data, ',')
		if i < 0 {
			return change{}, false
		}
		c, ok := named(changeMove, ev.Data[:i])
		c.monitor = ev.Data[i+1:]
		return c, ok
	case "renameworkspace":
		return idName(changeRename, ev.Data)
	case "activespecial":
		// NAME is empty when the special workspace closes.
		name, monitor, _ := strings.Cut(ev.Data, ",")
		return change{kind: changeSpecial, name: name, monitor: monitor}, true
	}
	return change{}, false
}

func named(kind changeKind, name string) (change, bool) {
	if name == "" {
		return change{}, false
	}
	return change{kind: kind, name: name, byName: true}, true
}

func idName(kind changeKind, data string) (change, bool) {
	rawID, name, ok := strings.Cut(data, ",")
	if !ok {
		return change{}, false
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return change{}, false
	}
	return change{kind: kind, id: id, name: name}, true
}

// rawEvent reports whether name is read from the raw stream. Every other
// event comes through hyprland-go.
func rawEvent(name string) bool {
	return name == "renameworkspace" || name == "activespecial"
}

// DisplayName strips the "special:" prefix Hyprland gives special workspaces.
func DisplayName(name string) string {
	return strings.TrimPrefix(name, "special:")
}
