package templates

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"pkg.jsn.cam/synthgen/pkg/storage"
	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := NewMaxValue("", nil, randstate.NewSeeded(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	saver := p.(synthgen.Saver)

	if err := saver.InitSave(dir); err != nil {
		t.Fatalf("InitSave failed: %v", err)
	}
	want := make(map[int]Metric)
	// Out of order and with a gap, as an absent item would leave.
	for _, index := range []int{2, 0, 3, 5} {
		v, _ := p.Generate(context.Background())
		want[index] = v.(Metric)
		if err := saver.Save(dir, v, index); err != nil {
			t.Fatalf("Save(%d) failed: %v", index, err)
		}
	}
	if err := saver.EndSave(dir); err != nil {
		t.Fatalf("EndSave failed: %v", err)
	}

	run, err := OpenSaved(dir)
	if err != nil {
		t.Fatalf("OpenSaved failed: %v", err)
	}
	defer run.Close()

	if run.Info.Template != "maxvalue" || run.Info.Items != 4 || run.Info.RunID == "" || run.Info.Version != StoreVersion {
		t.Errorf("unexpected run info: %+v", run.Info)
	}
	if run.Info.FinishedAt.Before(run.Info.StartedAt) {
		t.Errorf("finished %v before started %v", run.Info.FinishedAt, run.Info.StartedAt)
	}
	if n, err := run.Count(); err != nil || n != 4 {
		t.Errorf("Count() = %d, %v; want 4, nil", n, err)
	}

	var order []int
	err = run.Each(func(index int, raw []byte) error {
		var m Metric
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		if m != want[index] {
			t.Errorf("item %d = %+v, want %+v", index, m, want[index])
		}
		order = append(order, index)
		return nil
	})
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if len(order) != 4 || order[0] != 0 || order[1] != 2 || order[2] != 3 || order[3] != 5 {
		t.Errorf("items visited in order %v, want [0 2 3 5]", order)
	}
}

func TestSaveReplacesPreviousRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for run := 0; run < 2; run++ {
		p, _ := NewURLDedup("", nil, randstate.New())
		saver := p.(synthgen.Saver)
		if err := saver.InitSave(dir); err != nil {
			t.Fatalf("InitSave failed: %v", err)
		}
		for i := 0; i < 3-run; i++ {
			v, _ := p.Generate(context.Background())
			if err := saver.Save(dir, v, i); err != nil {
				t.Fatal(err)
			}
		}
		if err := saver.EndSave(dir); err != nil {
			t.Fatal(err)
		}
	}

	run, err := OpenSaved(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer run.Close()
	if n, _ := run.Count(); n != 2 {
		t.Errorf("expected only the second run's 2 items, got %d", n)
	}
}

func TestSaveMemoryBackend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := NewActionCount("", map[string]any{"save": map[string]any{"backend": storage.KindMemory}}, randstate.New())
	if err != nil {
		t.Fatal(err)
	}
	ac := p.(*ActionCount)

	if err := ac.InitSave(dir); err != nil {
		t.Fatalf("InitSave failed: %v", err)
	}
	if _, ok := ac.store.Backend().(*storage.MemoryBackend); !ok {
		t.Fatalf("expected memory backend, got %T", ac.store.Backend())
	}
	v, _ := ac.Generate(context.Background())
	if err := ac.Save(dir, v, 0); err != nil {
		t.Fatal(err)
	}

	var got ActionEvent
	found, err := ac.store.GetJSON(itemsBucket, storage.IndexKey(0), &got)
	if err != nil || !found || got != v.(ActionEvent) {
		t.Errorf("GetJSON = %+v, %v, %v; want %+v", got, found, err, v)
	}
	if err := ac.EndSave(dir); err != nil {
		t.Fatal(err)
	}
}

func TestSaverLifecycleErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, _ := NewMaxValue("", nil, randstate.New())
	saver := p.(synthgen.Saver)

	if err := saver.Save(dir, 1, 0); err == nil {
		t.Error("Save before InitSave should fail")
	}
	if err := saver.EndSave(dir); err == nil {
		t.Error("EndSave before InitSave should fail")
	}

	if err := saver.InitSave(dir); err != nil {
		t.Fatal(err)
	}
	if err := saver.InitSave(dir); err == nil {
		t.Error("second InitSave should fail")
	}
	if err := saver.Save(t.TempDir(), 1, 0); err == nil {
		t.Error("Save to a different directory should fail")
	}
	if err := saver.EndSave(dir); err != nil {
		t.Fatal(err)
	}
}

func TestOpenSavedErrors(t *testing.T) {
	t.Parallel()

	if _, err := OpenSaved(t.TempDir()); err == nil {
		t.Error("OpenSaved on empty directory should fail")
	}

	dir := t.TempDir()
	p, _ := NewMaxValue("", nil, randstate.New())
	saver := p.(synthgen.Saver)
	if err := saver.InitSave(dir); err != nil {
		t.Fatal(err)
	}
	// Unfinished: the bbolt file stays locked, so release it without EndSave.
	saver.(*MaxValue).store.Close()

	if _, err := OpenSaved(dir); err == nil {
		t.Error("OpenSaved on unfinished run should fail")
	}
}

func TestUnfinishedRunOverFinishedRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, _ := NewMaxValue("", nil, randstate.New())
	saver := first.(synthgen.Saver)
	if err := saver.InitSave(dir); err != nil {
		t.Fatal(err)
	}
	if err := saver.Save(dir, 1.5, 0); err != nil {
		t.Fatal(err)
	}
	if err := saver.EndSave(dir); err != nil {
		t.Fatal(err)
	}

	// A second run in the same directory dies before EndSave.
	second, _ := NewMaxValue("", nil, randstate.New())
	mv := second.(*MaxValue)
	if err := mv.InitSave(dir); err != nil {
		t.Fatal(err)
	}
	if err := mv.Save(dir, 2.5, 0); err != nil {
		t.Fatal(err)
	}
	mv.store.Close()

	if run, err := OpenSaved(dir); err == nil {
		run.Close()
		t.Errorf("OpenSaved accepted an unfinished run with metadata %+v", run.Info)
	}
}

func TestAbortSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, _ := NewURLDedup("", nil, randstate.New())
	ud := p.(*URLDedup)

	if err := ud.AbortSave(dir); err == nil {
		t.Error("AbortSave before InitSave should fail")
	}
	if err := ud.InitSave(dir); err != nil {
		t.Fatal(err)
	}
	v, _ := ud.Generate(context.Background())
	if err := ud.Save(dir, v, 0); err != nil {
		t.Fatal(err)
	}
	if err := ud.AbortSave(dir); err != nil {
		t.Fatalf("AbortSave failed: %v", err)
	}
	if err := ud.EndSave(dir); err == nil {
		t.Error("EndSave after AbortSave should fail")
	}

	if run, err := OpenSaved(dir); err == nil {
		run.Close()
		t.Error("OpenSaved accepted an aborted run")
	}

	// The directory is reusable once a later run finishes.
	if err := ud.InitSave(dir); err != nil {
		t.Fatal(err)
	}
	if err := ud.EndSave(dir); err != nil {
		t.Fatal(err)
	}
	run, err := OpenSaved(dir)
	if err != nil {
		t.Fatalf("OpenSaved after a finished run failed: %v", err)
	}
	defer run.Close()
	if n, _ := run.Count(); n != 0 {
		t.Errorf("aborted items should be cleared by the next run, got %d", n)
	}
}

func TestOpenSavedRejectsNewerMajor(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, _ := NewMaxValue("", nil, randstate.New())
	mv := p.(*MaxValue)
	if err := mv.InitSave(dir); err != nil {
		t.Fatal(err)
	}
	mv.info.Version = "v2.0.0"
	if err := mv.EndSave(dir); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenSaved(dir); !errors.Is(err, ErrIncompatibleStore) {
		t.Errorf("expected ErrIncompatibleStore, got %v", err)
	}
}

func TestUnknownBackend(t *testing.T) {
	t.Parallel()

	p, err := NewMaxValue("", map[string]any{"save": map[string]any{"backend": "s3"}}, randstate.New())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.(synthgen.Saver).InitSave(t.TempDir()); err == nil {
		t.Error("InitSave with unknown backend should fail")
	}
}
