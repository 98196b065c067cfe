package core

// Compressor turns an ordered list of source files into packaged bytes.
//
// Implementations must be deterministic for identical inputs. Any error
// aborts the build of the package being processed.
type Compressor interface {
	CompressScript(paths []string) ([]byte, error)

	// CompressStyle renders a stylesheet variant. param is the absolute
	// asset URL for VariantLegacyFallback and empty otherwise.
	CompressStyle(paths []string, variant Variant, param string) ([]byte, error)

	CompileTemplates(paths []string) ([]byte, error)
}
