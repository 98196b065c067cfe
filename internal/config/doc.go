// Package config loads the asset manifest into a typed, validated Settings.
//
// The manifest is a single YAML file (or JSON/JSONC, detected by extension)
// holding both the packaging options and the package definitions:
//
//	package_path: assets
//	embed_assets: datauri
//	javascripts:
//	  app:
//	    - public/js/vendor/*.js
//	    - public/js/app/**/*.js
//	stylesheets:
//	  site:
//	    - public/css/*.css
//
// Unknown keys are rejected at load time. Blocks named development, staging
// and production override base values when [Options].Environment matches.
// ${VAR} and ${VAR:-default} references in string values and patterns are
// expanded from the process environment.
//
// Key exports:
//
//   - [Settings] -- the resolved configuration consumed by the packager
//   - [Default] -- Settings with every default applied
//   - [Load] and [LoadSoft] -- the two entry points for loading
package config
