package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// p2kb runs the freshly built CLI against P2KB_PATH.
func p2kb(args ...string) error {
	return sh.RunWithV(map[string]string{"P2KB_PATH": kbRoot()}, filepath.Join(binDir, binName), args...)
}

// Index builds or refreshes the knowledge-base search index.
func Index() error {
	mg.Deps(Build)
	return p2kb("knowledge", "store")
}

// Audit runs the layer completeness audit, the field audit, the schema
// check, and the manifest link check.
func Audit() error {
	mg.Deps(Build)
	for _, args := range [][]string{
		{"layers", "audit"},
		{"audit", "fields"},
		{"audit", "schema"},
		{"manifest", "check-links"},
	} {
		if err := p2kb(args...); err != nil {
			return err
		}
	}
	return nil
}
