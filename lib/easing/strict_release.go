//go:build !sourcererdebug

package easing

const strict = false
