// Package main provides the go-macsign CLI tool for macOS code signing and
// notarization.
//
// For the library API, see the macsign subpackage:
//
//	import "github.com/aluedeke/go-macsign/pkg/macsign"
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/aluedeke/go-macsign@latest
package main
