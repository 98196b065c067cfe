package packager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidrichards/ram/internal/config"
	"github.com/davidrichards/ram/internal/core"
	"github.com/davidrichards/ram/internal/trace"
)

// visitOrder is the order artifact types are precached in.
var visitOrder = []core.ArtifactType{core.Script, core.Style}

// Options control a packaging pass.
type Options struct {
	// Force rebuilds every selected package regardless of mtimes.
	Force bool

	// PackageNames restricts the pass to these names. Empty selects every
	// package. A name selects it in both namespaces.
	PackageNames []string
}

// Packager owns the package registries of one manifest load and wires the
// staleness, planning and writing steps together.
//
// A Packager is immutable after New; build a new one after the manifest
// changes (see Holder).
type Packager struct {
	settings   *config.Settings
	compressor core.Compressor
	sink       trace.Sink
	opts       Options

	registries map[core.ArtifactType]*core.Registry
	planner    *core.VariantPlanner
	writer     *core.ArtifactWriter
	oracle     *core.StalenessOracle
}

// New resolves every package of settings. sink may be nil.
func New(settings *config.Settings, compressor core.Compressor, sink trace.Sink, opts Options) (*Packager, error) {
	if settings == nil {
		return nil, core.MissingConfigurationf("no settings loaded")
	}
	if compressor == nil {
		return nil, fmt.Errorf("nil compressor")
	}
	if sink == nil {
		sink = trace.NopSink{}
	}

	p := &Packager{
		settings:   settings,
		compressor: compressor,
		sink:       sink,
		opts:       opts,
		registries: make(map[core.ArtifactType]*core.Registry, len(visitOrder)),
		planner: &core.VariantPlanner{
			Embed:       settings.Embed,
			Gzip:        settings.GzipAssets,
			PackagePath: settings.PackagePath,
		},
		writer: core.NewArtifactWriter(settings.GzipAssets),
		oracle: core.NewStalenessOracle(settings.ConfigPath, opts.Force),
	}

	resolver := core.NewGlobResolver(settings.AssetRoot, sink)
	mapper := settings.URLMapper()
	for _, typ := range visitOrder {
		reg, err := core.NewRegistry(typ, settings.Manifest(typ), resolver, mapper)
		if err != nil {
			return nil, err
		}
		p.registries[typ] = reg
	}
	return p, nil
}

// Settings returns the settings the packager was built from.
func (p *Packager) Settings() *config.Settings { return p.settings }

// Lookup returns the named package of typ.
func (p *Packager) Lookup(name string, typ core.ArtifactType) (*core.Package, error) {
	reg, ok := p.registries[typ]
	if !ok {
		return nil, &core.PackageNotFoundError{Name: name, Type: typ}
	}
	return reg.Lookup(name)
}

// Names returns the sorted package names of typ.
func (p *Packager) Names(typ core.ArtifactType) []string {
	reg, ok := p.registries[typ]
	if !ok {
		return nil
	}
	return reg.Names()
}

// IndividualURLs returns the server-relative URLs of a package's sources.
func (p *Packager) IndividualURLs(name string, typ core.ArtifactType) ([]string, error) {
	pkg, err := p.Lookup(name, typ)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), pkg.URLs...), nil
}

// Pack returns the packaged bytes of one package variant without persisting
// them. param is the absolute asset URL the legacy fallback references.
func (p *Packager) Pack(name string, typ core.ArtifactType, variant core.Variant, param string) ([]byte, error) {
	pkg, err := p.Lookup(name, typ)
	if err != nil {
		return nil, err
	}
	return p.render(pkg, variant, param)
}

// PackTemplates returns the compiled templates of a script package.
func (p *Packager) PackTemplates(name string) ([]byte, error) {
	pkg, err := p.Lookup(name, core.Script)
	if err != nil {
		return nil, err
	}
	out, err := p.compressor.CompileTemplates(pkg.TemplatePaths(p.settings.TemplateExtension))
	if err != nil {
		return nil, &core.TransformError{Package: name, Type: core.Script, Variant: core.VariantPlain, Err: err}
	}
	return out, nil
}

func (p *Packager) render(pkg *core.Package, variant core.Variant, param string) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch pkg.Type {
	case core.Script:
		if variant != core.VariantPlain {
			return nil, fmt.Errorf("script package %q has no %s variant", pkg.Name, variant)
		}
		out, err = p.compressor.CompressScript(pkg.Paths)
	case core.Style:
		if variant == core.VariantLegacyFallback && param == "" {
			return nil, core.MissingConfigurationf("a base URL is required in order to generate MHTML")
		}
		out, err = p.compressor.CompressStyle(pkg.Paths, variant, param)
	default:
		return nil, fmt.Errorf("unknown artifact type %q", pkg.Type)
	}
	if err != nil {
		return nil, &core.TransformError{Package: pkg.Name, Type: pkg.Type, Variant: variant, Err: err}
	}
	return out, nil
}

// selection returns the packages a pass visits, scripts first, names sorted.
func (p *Packager) selection() ([]PackageKey, error) {
	var filter map[string]bool
	if len(p.opts.PackageNames) > 0 {
		filter = make(map[string]bool, len(p.opts.PackageNames))
		for _, n := range p.opts.PackageNames {
			filter[n] = false
		}
	}

	var keys []PackageKey
	for _, typ := range visitOrder {
		for _, name := range p.registries[typ].Names() {
			if filter != nil {
				if _, ok := filter[name]; !ok {
					continue
				}
				filter[name] = true
			}
			keys = append(keys, PackageKey{Type: typ, Name: name})
		}
	}

	var missing []error
	for _, n := range p.opts.PackageNames {
		if !filter[n] {
			missing = append(missing, &core.PackageNotFoundError{Name: n})
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	return keys, nil
}

// PrecacheAll builds every selected stale package into outputDir and
// persists it. An empty outputDir means {public_root}/{package_path}.
//
// Staleness is decided for every selected package before anything is
// built. Configuration problems, unknown filter names and a missing
// baseURL for a stale style package that needs the legacy fallback abort
// the pass at that point. A compressor or write failure fails only its own
// package; the remaining packages are still visited and every failure is
// joined into the returned error. An unwritable output directory aborts
// the pass.
func (p *Packager) PrecacheAll(ctx context.Context, outputDir, baseURL string) (*Result, error) {
	if outputDir == "" {
		outputDir = p.settings.OutputDir()
	}
	res := newResult(outputDir)

	keys, err := p.selection()
	if err != nil {
		return res, err
	}
	configMtime, err := p.oracle.ConfigMtime()
	if err != nil {
		return res, core.MissingConfigurationf("%v", err)
	}

	for _, k := range keys {
		res.FinalState[k] = StateUnchecked
	}

	var (
		failures []error
		stale    []staleKey
	)
	for _, k := range keys {
		reason, ok, err := p.check(res, k, outputDir, configMtime)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if ok {
			stale = append(stale, staleKey{key: k, reason: reason})
		}
	}

	if baseURL == "" && p.planner.RequiresBaseURL(core.Style) {
		for _, sk := range stale {
			if sk.key.Type == core.Style {
				return res, errors.Join(append(failures, core.MissingConfigurationf("a base URL is required in order to generate MHTML"))...)
			}
		}
	}

	for _, sk := range stale {
		if err := ctx.Err(); err != nil {
			return res, errors.Join(append(failures, err)...)
		}
		err := p.build(res, sk.key, sk.reason, outputDir, baseURL)
		if err == nil {
			continue
		}
		failures = append(failures, err)
		if errors.Is(err, core.ErrOutputNotWritable) {
			break
		}
	}
	return res, errors.Join(failures...)
}

type staleKey struct {
	key    PackageKey
	reason core.Reason
}

// check moves k out of UNCHECKED and reports whether it must be built.
func (p *Packager) check(res *Result, k PackageKey, outputDir string, configMtime time.Time) (core.Reason, bool, error) {
	pkg, err := p.Lookup(k.Name, k.Type)
	if err != nil {
		return "", false, err
	}

	expected := p.planner.ExpectedFiles(outputDir, k.Name, k.Type)
	stale, reason, err := p.oracle.IsStale(pkg, expected, configMtime)
	if err != nil {
		return "", false, p.fail(res, k, StateUnchecked, err)
	}
	if !stale {
		if err := Transition(res.FinalState, k, StateUnchecked, StateFresh); err != nil {
			return "", false, err
		}
		trace.SafeRecord(p.sink, trace.Event{Kind: trace.EventPackageFresh, Type: string(k.Type), Package: k.Name, Reason: string(reason)})
		return reason, false, nil
	}
	if err := Transition(res.FinalState, k, StateUnchecked, StateStale); err != nil {
		return "", false, err
	}
	trace.SafeRecord(p.sink, trace.Event{Kind: trace.EventPackageStale, Type: string(k.Type), Package: k.Name, Reason: string(reason)})
	return reason, true, nil
}

func (p *Packager) build(res *Result, k PackageKey, reason core.Reason, outputDir, baseURL string) error {
	pkg, err := p.Lookup(k.Name, k.Type)
	if err != nil {
		return err
	}
	if err := Transition(res.FinalState, k, StateStale, StateBuilding); err != nil {
		return err
	}
	res.BuildOrder = append(res.BuildOrder, k)

	// Every variant is rendered before any is written so a compressor
	// failure leaves the previous build untouched.
	mtime, err := p.oracle.LatestMtime(pkg.Paths)
	if err != nil {
		return p.fail(res, k, StateBuilding, err)
	}
	type rendered struct {
		bound   core.BoundVariant
		content []byte
	}
	var variants []rendered
	for _, d := range p.planner.Plan(k.Name, k.Type) {
		bound, err := p.planner.Bind(k.Name, k.Type, d, baseURL, mtime)
		if err != nil {
			return p.fail(res, k, StateBuilding, err)
		}
		content, err := p.render(pkg, bound.Variant, bound.Param)
		if err != nil {
			return p.fail(res, k, StateBuilding, err)
		}
		variants = append(variants, rendered{bound: bound, content: content})
	}

	for _, v := range variants {
		files, err := p.writer.Persist(outputDir, v.bound.Filename, v.content, v.bound.Mtime)
		if err != nil {
			return p.fail(res, k, StateBuilding, err)
		}
		res.Written[k] = append(res.Written[k], files...)
		trace.SafeRecord(p.sink, trace.Event{
			Kind:    trace.EventVariantWritten,
			Type:    string(k.Type),
			Package: k.Name,
			Variant: v.bound.Variant.Suffix(),
			Files:   files,
			Bytes:   len(v.content),
		})
	}

	if err := Transition(res.FinalState, k, StateBuilding, StatePersisted); err != nil {
		return err
	}
	trace.SafeRecord(p.sink, trace.Event{Kind: trace.EventPackageBuilt, Type: string(k.Type), Package: k.Name, Reason: string(reason)})
	return nil
}

func (p *Packager) fail(res *Result, k PackageKey, from PackageState, cause error) error {
	if err := Transition(res.FinalState, k, from, StateFailed); err != nil {
		return errors.Join(cause, err)
	}
	trace.SafeRecord(p.sink, trace.Event{Kind: trace.EventPackageFailed, Type: string(k.Type), Package: k.Name, Err: cause})
	var tErr *core.TransformError
	if errors.As(cause, &tErr) {
		return cause
	}
	return fmt.Errorf("%s package %q: %w", k.Type, k.Name, cause)
}
