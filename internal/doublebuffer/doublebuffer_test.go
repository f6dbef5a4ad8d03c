package doublebuffer

import (
	"errors"
	"sync"
	"testing"
)

type snapshot struct {
	items []int
}

func newSnapshot() *snapshot { return &snapshot{} }

func reset(w *snapshot) { w.items = w.items[:0] }

func fill(scratch *snapshot, i int) error {
	scratch.items = append(scratch.items, i*10)
	return nil
}

func merge(w, scratch *snapshot) { w.items = append(w.items, scratch.items...) }

func TestUpdateDataSlow(t *testing.T) {
	m := New(newSnapshot)
	if err := m.UpdateDataSlow(reset, fill, merge, 3); err != nil {
		t.Fatalf("UpdateDataSlow: %v", err)
	}
	got := m.GetData().items
	want := []int{0, 10, 20}
	if len(got) != len(want) {
		t.Fatalf("items = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("items[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if m.Swaps() != 1 {
		t.Errorf("Swaps() = %d, want 1", m.Swaps())
	}
	if m.Busy() {
		t.Error("Busy() after synchronous rebuild")
	}
}

func TestZeroCount(t *testing.T) {
	m := New(newSnapshot)
	before := m.GetData()
	if err := m.UpdateDataSlow(reset, fill, merge, 0); err != nil {
		t.Fatalf("UpdateDataSlow: %v", err)
	}
	if m.UpdateData(reset, fill, merge, 0) {
		t.Error("UpdateData started a worker for zero items")
	}
	if m.GetData() != before || m.Swaps() != 0 {
		t.Error("zero-count update published a snapshot")
	}
}

func TestUpdateDataSingleFlight(t *testing.T) {
	m := New(newSnapshot)
	release := make(chan struct{})
	started := make(chan struct{})

	var once sync.Once
	blocking := func(scratch *snapshot, i int) error {
		once.Do(func() { close(started) })
		<-release
		return fill(scratch, i)
	}

	if !m.UpdateData(reset, blocking, merge, 2) {
		t.Fatal("first UpdateData did not start")
	}
	<-started
	if !m.Busy() {
		t.Error("Busy() = false with a rebuild in flight")
	}
	if m.UpdateData(reset, fill, merge, 5) {
		t.Error("second UpdateData started while busy")
	}
	if len(m.GetData().items) != 0 {
		t.Error("reader saw a partial snapshot")
	}

	close(release)
	m.Wait()

	if m.Busy() {
		t.Error("Busy() after worker finished")
	}
	if m.Swaps() != 1 {
		t.Errorf("Swaps() = %d, want 1", m.Swaps())
	}
	if got := m.GetData().items; len(got) != 2 {
		t.Errorf("items = %v, want two entries", got)
	}
}

func TestUpdateDataNoTearing(t *testing.T) {
	m := New(newSnapshot)
	prev := 0
	for round := 1; round <= 8; round++ {
		n := round * 16
		if !m.UpdateData(reset, fill, merge, n) {
			t.Fatalf("round %d: UpdateData did not start", round)
		}
		for m.Busy() {
			if got := len(m.GetData().items); got != prev && got != n {
				t.Fatalf("round %d: torn snapshot with %d items", round, got)
			}
		}
		m.Wait()
		if got := len(m.GetData().items); got != n {
			t.Fatalf("round %d: %d items, want %d", round, got, n)
		}
		prev = n
	}
	if m.Swaps() != 8 {
		t.Errorf("Swaps() = %d, want 8", m.Swaps())
	}
}

func TestUpdateDataFailure(t *testing.T) {
	tests := []struct {
		name   string
		update UpdateFunc[snapshot]
	}{
		{"error", func(*snapshot, int) error { return errors.New("sampler offline") }},
		{"panic", func(*snapshot, int) error { panic("bad index") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(newSnapshot)
			if err := m.UpdateDataSlow(reset, fill, merge, 1); err != nil {
				t.Fatalf("seed rebuild: %v", err)
			}
			good := m.GetData()

			var reported error
			m.OnError(func(err error) { reported = err })

			if !m.UpdateData(reset, tt.update, merge, 3) {
				t.Fatal("UpdateData did not start")
			}
			m.Wait()

			if m.Busy() {
				t.Error("Busy() stuck after failure")
			}
			if m.GetData() != good {
				t.Error("failed rebuild replaced the snapshot")
			}
			if reported == nil || m.LastError() == nil {
				t.Error("failure not reported")
			}

			if !m.UpdateData(reset, fill, merge, 2) {
				t.Fatal("UpdateData refused after a failure")
			}
			m.Wait()
			if m.LastError() != nil {
				t.Errorf("LastError() = %v after success", m.LastError())
			}
			if len(m.GetData().items) != 2 {
				t.Errorf("items = %v, want two entries", m.GetData().items)
			}
		})
	}
}

func TestUpdateDataSlowError(t *testing.T) {
	m := New(newSnapshot)
	want := errors.New("boom")
	err := m.UpdateDataSlow(reset, func(*snapshot, int) error { return want }, merge, 1)
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if m.Swaps() != 0 {
		t.Error("failed synchronous rebuild swapped")
	}
}

func TestUpdateDataSlowPanic(t *testing.T) {
	m := New(newSnapshot)
	err := m.UpdateDataSlow(reset, func(*snapshot, int) error { panic("bad index") }, merge, 1)
	if err == nil {
		t.Fatal("expected an error from a panicking rebuild")
	}
	if m.Busy() {
		t.Fatal("Busy() stuck after a panicking synchronous rebuild")
	}
	if m.Swaps() != 0 {
		t.Error("panicking synchronous rebuild swapped")
	}

	if !m.UpdateData(reset, fill, merge, 2) {
		t.Fatal("UpdateData refused after a panicking synchronous rebuild")
	}
	m.Wait()
	if len(m.GetData().items) != 2 {
		t.Errorf("items = %v, want two entries", m.GetData().items)
	}
}

func TestUpdateDataSlowWaitsForWorker(t *testing.T) {
	m := New(newSnapshot)
	started := make(chan struct{})
	release := make(chan struct{})
	slowFill := func(scratch *snapshot, i int) error {
		if i == 0 {
			close(started)
			<-release
		}
		return fill(scratch, i)
	}

	if !m.UpdateData(reset, slowFill, merge, 2) {
		t.Fatal("UpdateData did not start")
	}
	<-started

	done := make(chan error)
	go func() { done <- m.UpdateDataSlow(reset, fill, merge, 3) }()

	select {
	case <-done:
		t.Fatal("UpdateDataSlow ran while a background rebuild was in flight")
	default:
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("UpdateDataSlow: %v", err)
	}
	if m.Swaps() != 2 {
		t.Errorf("Swaps() = %d, want 2", m.Swaps())
	}
	if got := m.GetData().items; len(got) != 3 {
		t.Errorf("items = %v, want three entries", got)
	}
	if m.Busy() {
		t.Error("Busy() after both rebuilds finished")
	}
}

func TestCreateData(t *testing.T) {
	m := New(newSnapshot)
	m.CreateData(func(read, write *snapshot) {
		read.items = []int{7}
		write.items = []int{7}
	})
	if got := m.GetData().items; len(got) != 1 || got[0] != 7 {
		t.Errorf("items = %v, want [7]", got)
	}
}
