// Package types defines the weight journal entities, the service interfaces
// that consumers program against, and the standard errors shared by the
// storage layer.
package types
