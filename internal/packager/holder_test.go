package packager

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davidrichards/ram/internal/config"
	"github.com/davidrichards/ram/internal/core"
)

func newTestHolder(f *fixture) *Holder {
	return NewHolder(HolderConfig{
		ConfigPath:    f.configPath,
		Load:          config.Options{AssetRoot: f.root},
		NewCompressor: func(*config.Settings) core.Compressor { return &fakeCompressor{} },
	})
}

func TestHolder_GetIsLazyAndCached(t *testing.T) {
	f := newFixture(t, twoPackageManifest, twoPackageFiles())
	h := newTestHolder(f)

	first, err := h.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := h.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached packager to be reused")
	}

	h.Invalidate()
	third, err := h.Get()
	if err != nil {
		t.Fatalf("Get after Invalidate: %v", err)
	}
	if third == first {
		t.Fatalf("expected a rebuilt packager after Invalidate")
	}
}

func TestHolder_RefreshReloadsWhenManifestAdvances(t *testing.T) {
	f := newFixture(t, twoPackageManifest, twoPackageFiles())
	h := newTestHolder(f)

	first, err := h.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	same, err := h.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if same != first {
		t.Fatalf("unchanged manifest should not reload")
	}

	f.write(t, "config/assets.yml", "javascripts:\n  other: [public/js/a.js]\n")
	touch(t, f.configPath, baseTime.Add(time.Minute))

	reloaded, err := h.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if reloaded == first {
		t.Fatalf("expected a reload after the manifest changed")
	}
	if _, err := reloaded.Lookup("other", core.Script); err != nil {
		t.Fatalf("reloaded packager should see the new manifest: %v", err)
	}
	if _, err := reloaded.Lookup("app", core.Script); !errors.Is(err, core.ErrPackageNotFound) {
		t.Fatalf("removed package should be gone, got %v", err)
	}
}

func TestHolder_MissingManifest(t *testing.T) {
	h := NewHolder(HolderConfig{
		ConfigPath:    t.TempDir() + "/absent.yml",
		NewCompressor: func(*config.Settings) core.Compressor { return &fakeCompressor{} },
	})
	if _, err := h.Get(); !errors.Is(err, core.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if _, err := h.Refresh(); !errors.Is(err, core.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
}

func TestHolder_ConcurrentGet(t *testing.T) {
	f := newFixture(t, twoPackageManifest, twoPackageFiles())
	h := newTestHolder(f)

	var wg sync.WaitGroup
	results := make([]*Packager, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := h.Get()
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()
	for _, p := range results[1:] {
		if p != results[0] {
			t.Fatalf("concurrent Get calls built more than one packager")
		}
	}
}
