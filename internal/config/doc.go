// Package config defines the format-agnostic pipeline model and the Loader
// interface that concrete document formats (HCL, YAML) implement. The rest
// of the engine consumes only this model and never sees parser types.
package config
