// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package instructions

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/pdiddy/p2kb/pkg/types"
)

var (
	idPattern       = regexp.MustCompile(`^pasm2_[a-z0-9_]+_[0-9a-f]{8}$`)
	mnemonicPattern = regexp.MustCompile(`^[A-Z0-9_]+$`)
)

// ValidateRecord checks the fields every Layer 1 record must carry.
func ValidateRecord(rec types.InstructionRecord) error {
	return validation.Errors{
		"metadata": validation.ValidateStruct(&rec.Metadata,
			validation.Field(&rec.Metadata.ID, validation.Required, validation.Match(idPattern)),
			validation.Field(&rec.Metadata.Version, validation.Required),
			validation.Field(&rec.Metadata.Source, validation.By(func(any) error {
				return validation.ValidateStruct(&rec.Metadata.Source,
					validation.Field(&rec.Metadata.Source.Document, validation.Required),
					validation.Field(&rec.Metadata.Source.Row, validation.Min(2)),
				)
			})),
		),
		"layer1_csv": validation.ValidateStruct(&rec.Layer1CSV,
			validation.Field(&rec.Layer1CSV.Mnemonic, validation.Required, validation.Match(mnemonicPattern)),
			validation.Field(&rec.Layer1CSV.Syntax, validation.Required),
		),
	}.Filter()
}
