package plugin

import "testing"

func TestNewDescriptionValidatesID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"myplugin", true},
		{"my-plugin_2", true},
		{"a", true},
		{"", false},
		{"2fast", false},
		{"MyPlugin", false},
		{"has space", false},
		{"abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijkl", false}, // 65 chars
	}
	for _, tt := range tests {
		_, err := NewDescription(tt.id, "", "", "", "", nil, nil)
		if (err == nil) != tt.valid {
			t.Errorf("NewDescription(%q) err = %v, want valid=%v", tt.id, err, tt.valid)
		}
	}
}

func TestDisplayNameFallsBackToID(t *testing.T) {
	d, err := NewDescription("example", "", "1.0", "", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.DisplayName() != "example" {
		t.Errorf("DisplayName = %q", d.DisplayName())
	}

	d, _ = NewDescription("example", "Example Plugin", "1.0", "", "", nil, nil)
	if d.DisplayName() != "Example Plugin" {
		t.Errorf("DisplayName = %q", d.DisplayName())
	}
}

func TestDependencies(t *testing.T) {
	d, err := NewDescription("example", "", "", "", "", nil, []Dependency{
		{ID: "zeta", Optional: true},
		{ID: "alpha"},
	})
	if err != nil {
		t.Fatal(err)
	}

	dep, ok := d.Dependency("zeta")
	if !ok || !dep.Optional {
		t.Errorf("Dependency(zeta) = %+v, %v", dep, ok)
	}
	if _, ok := d.Dependency("missing"); ok {
		t.Error("unexpected dependency")
	}

	deps := d.Dependencies()
	if len(deps) != 2 || deps[0].ID != "alpha" || deps[1].ID != "zeta" {
		t.Errorf("Dependencies = %+v", deps)
	}

	if _, err := NewDescription("example", "", "", "", "", nil, []Dependency{{ID: "Bad ID"}}); err == nil {
		t.Error("invalid dependency ID accepted")
	}
}
