//go:build tools
// +build tools

package mocks

// Keeps mockgen in go.mod for the go:generate directives in mocks.go.
import (
	_ "github.com/golang/mock/mockgen"
)
