//go:build !amd64

package probe

var hasAVX2 func() bool
