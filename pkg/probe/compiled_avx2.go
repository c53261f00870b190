//go:build amd64.v3

package probe

const compiledWithAVX2 = true
