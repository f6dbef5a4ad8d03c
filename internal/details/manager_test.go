package details

import (
	"context"
	"os"
	"testing"
)

func TestManager_ValidateBakesMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	m := NewManager(store, Options{LoadToGPUDistance: 200, UpdateData: true})
	m.Add(newGridSource("north", 256), false)
	m.Add(newGridSource("south", 128), false)

	if err := m.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	assets := m.Assets()
	if len(assets) != 2 || assets[0] == nil || assets[1] == nil {
		t.Fatalf("unexpected assets: %v", assets)
	}
	if assets[0].Name != "north" || assets[1].Name != "south" {
		t.Errorf("assets out of order: %s, %s", assets[0].Name, assets[1].Name)
	}
	for _, name := range []string{"north", "south"} {
		if _, err := os.Stat(store.Path(name)); err != nil {
			t.Errorf("asset %s not saved: %v", name, err)
		}
	}
	if assets[0].Data.Terrain == nil {
		t.Error("validated asset has no terrain linked")
	}
}

func TestManager_ValidateLoadsExisting(t *testing.T) {
	store := NewStore(t.TempDir())
	src := newGridSource("meadow", 256)
	if _, err := store.Bake(src); err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	before, err := os.Stat(store.Path("meadow"))
	if err != nil {
		t.Fatal(err)
	}

	// a terrain whose layers would block proves Validate does not rebake
	src.gate = make(chan struct{})
	m := NewManager(store, Options{})
	m.Add(src, false)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	after, err := os.Stat(store.Path("meadow"))
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("Validate rewrote an existing asset")
	}
	if m.Assets()[0].Data.Count() != src.expectedInstances() {
		t.Errorf("loaded %d instances", m.Assets()[0].Data.Count())
	}
}

func TestManager_ValidateReportsFailures(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := os.WriteFile(store.Path("broken"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(store, Options{})
	m.Add(newGridSource("broken", 256), false)
	m.Add(newGridSource("fine", 256), false)

	if err := m.Validate(); err == nil {
		t.Fatal("expected error for corrupt asset")
	}
	assets := m.Assets()
	if assets[0] != nil || assets[1] == nil {
		t.Errorf("expected only the corrupt terrain unresolved: %v", assets)
	}
}

func TestManager_EditUpdate(t *testing.T) {
	store := NewStore(t.TempDir())

	m := NewManager(store, Options{})
	if m.EditUpdate(context.Background()) {
		t.Fatal("EditUpdate ran with editing disabled")
	}

	src := newGridSource("meadow", 256)
	idle := newGridSource("idle", 256)
	m = NewManager(store, Options{EnableEdit: true})
	m.Add(src, true)
	m.Add(idle, false)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	first := m.Assets()

	src.gate = make(chan struct{})
	if !m.EditUpdate(context.Background()) {
		t.Fatal("EditUpdate did not start")
	}
	if m.EditUpdate(context.Background()) {
		t.Error("second EditUpdate started while a rebake was running")
	}
	if !m.Editing() {
		t.Error("Editing() = false during rebake")
	}

	close(src.gate)
	m.Wait()

	if m.Editing() {
		t.Error("Editing() = true after rebake")
	}
	now := m.Assets()
	if now[0] == first[0] {
		t.Error("edit-active terrain was not republished")
	}
	if now[1] != first[1] {
		t.Error("inactive terrain was rebaked")
	}
	if now[0].Data.Count() != src.expectedInstances() {
		t.Errorf("rebaked %d instances", now[0].Data.Count())
	}
}

func TestManager_EditUpdateCancelled(t *testing.T) {
	m := NewManager(NewStore(t.TempDir()), Options{EnableEdit: true})
	m.Add(newGridSource("meadow", 256), true)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	before := m.Assets()[0]

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.EditUpdate(ctx)
	m.Wait()

	if m.Assets()[0] != before {
		t.Error("cancelled rebake published an asset")
	}
}
