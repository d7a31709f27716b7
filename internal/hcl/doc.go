// Package hcl provides the concrete HCL implementation of the pipeline
// document loader. It is responsible for file parsing and HCL-to-model
// translation; the rest of the engine only sees the config package's
// agnostic model.
package hcl
