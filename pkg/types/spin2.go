// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Spin2Method is a built-in Spin2 method record.
type Spin2Method struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Category    string `json:"category" yaml:"category"`
	Signature   string `json:"signature" yaml:"signature"`
	Description string `json:"description" yaml:"description"`
	Source      string `json:"source" yaml:"source"`
}
