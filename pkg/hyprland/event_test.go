package hyprland

import "testing"

func TestParseEvent(t *testing.T) {
	ev, ok := ParseEvent("workspacev2>>3,web")
	if !ok || ev.Name != "workspacev2" || ev.Data != "3,web" {
		t.Errorf("unexpected parse %+v, %v", ev, ok)
	}

	ev, ok = ParseEvent("activewindow>>kitty,~ >> vim")
	if !ok || ev.Data != "kitty,~ >> vim" {
		t.Errorf("data should keep later separators, got %q", ev.Data)
	}

	for _, line := range []string{"", "garbage", ">>data"} {
		if _, ok := ParseEvent(line); ok {
			t.Errorf("expected %q to be rejected", line)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		line string
		want change
	}{
		{"workspace>>2", change{kind: changeFocus, name: "2", byName: true}},
		{"createworkspace>>mail, chat", change{kind: changeCreate, name: "mail, chat", byName: true}},
		{"destroyworkspace>>special:scratch", change{kind: changeDestroy, name: "special:scratch", byName: true}},
		{"moveworkspace>>web,DP-2", change{kind: changeMove, name: "web", monitor: "DP-2", byName: true}},
		{"renameworkspace>>3,browser", change{kind: changeRename, id: 3, name: "browser"}},
		{"activespecial>>special:scratch,DP-1", change{kind: changeSpecial, name: "special:scratch", monitor: "DP-1"}},
		{"activespecial>>,DP-1", change{kind: changeSpecial, monitor: "DP-1"}},
	}
	for _, tt := range tests {
		ev, _ := ParseEvent(tt.line)
		got, ok := decode(ev)
		if !ok {
			t.Errorf("%s: not decoded", tt.line)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestDecode_Rejects(t *testing.T) {
	for _, line := range []string{
		"workspace>>",
		"workspacev2>>2,2",
		"renameworkspace>>two,2",
		"renameworkspace>>7",
		"moveworkspace>>3",
		"openwindow>>abc,1,kitty,title",
	} {
		ev, _ := ParseEvent(line)
		if c, ok := decode(ev); ok {
			t.Errorf("%s: expected no change, got %+v", line, c)
		}
	}
}

func TestRawEvent(t *testing.T) {
	for name, want := range map[string]bool{
		"renameworkspace": true,
		"activespecial":   true,
		"workspace":       false,
		"workspacev2":     false,
	} {
		if got := rawEvent(name); got != want {
			t.Errorf("rawEvent(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("special:scratch"); got != "scratch" {
		t.Errorf("got %q", got)
	}
	if got := DisplayName("web"); got != "web" {
		t.Errorf("got %q", got)
	}
}
