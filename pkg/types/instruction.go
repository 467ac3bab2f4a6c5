// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Layer keys on a per-instruction record, in tier order.
const (
	LayerCSV            = "layer1_csv"
	LayerDatasheet      = "layer2_datasheet"
	LayerSiliconDoc     = "layer3_silicon_doc"
	LayerClarifications = "layer4_chip_clarifications"
)

// LayerKeys lists the four annotation tiers in order.
var LayerKeys = []string{LayerCSV, LayerDatasheet, LayerSiliconDoc, LayerClarifications}

// RecordSource identifies where a Layer 1 record came from.
type RecordSource struct {
	Document string `json:"document" yaml:"document"`
	Type     string `json:"type" yaml:"type"`
	Row      int    `json:"row" yaml:"row"`
}

// RecordMetadata is the metadata block written at the top of every
// instruction record.
type RecordMetadata struct {
	ID             string       `json:"id" yaml:"id"`
	Version        string       `json:"version" yaml:"version"`
	ExtractionDate string       `json:"extraction_date" yaml:"extraction_date"`
	Source         RecordSource `json:"source" yaml:"source"`
}

// CSVTiming holds the four clock-cycle columns of the instruction table.
// A nil value means the cell held no number.
type CSVTiming struct {
	CogExec8Cogs  *int `json:"cog_exec_8_cogs" yaml:"cog_exec_8_cogs"`
	HubExec8Cogs  *int `json:"hub_exec_8_cogs" yaml:"hub_exec_8_cogs"`
	CogExec16Cogs *int `json:"cog_exec_16_cogs" yaml:"cog_exec_16_cogs"`
	HubExec16Cogs *int `json:"hub_exec_16_cogs" yaml:"hub_exec_16_cogs"`
}

// Layer1CSV is the CSV-derived tier of an instruction record.
type Layer1CSV struct {
	Mnemonic        string    `json:"mnemonic" yaml:"mnemonic"`
	Syntax          string    `json:"syntax" yaml:"syntax"`
	Group           *string   `json:"group" yaml:"group"`
	Encoding        *string   `json:"encoding" yaml:"encoding"`
	Alias           *string   `json:"alias" yaml:"alias"`
	Description     *string   `json:"description" yaml:"description"`
	InterruptShield bool      `json:"interrupt_shield" yaml:"interrupt_shield"`
	Timing          CSVTiming `json:"timing" yaml:"timing"`
}

// InstructionRecord is the file written by CSV extraction. Later tiers are
// added in place by editing the YAML document, so this type only covers
// what extraction itself produces.
type InstructionRecord struct {
	Metadata  RecordMetadata `json:"metadata" yaml:"metadata"`
	Layer1CSV Layer1CSV      `json:"layer1_csv" yaml:"layer1_csv"`
}

// TimingType classifies a datasheet clock-cycle entry.
type TimingType string

const (
	TimingFixed         TimingType = "fixed"
	TimingVariable      TimingType = "variable"
	TimingConditional   TimingType = "conditional"
	TimingModeDependent TimingType = "mode_dependent"
	TimingSpecial       TimingType = "special"
)

// Timing is the structured form of a datasheet timing cell, stored under
// layer2_datasheet.timing.
type Timing struct {
	Raw          string     `json:"raw" yaml:"raw"`
	BaseCycles   *int       `json:"base_cycles,omitempty" yaml:"base_cycles,omitempty"`
	MinCycles    *int       `json:"min_cycles,omitempty" yaml:"min_cycles,omitempty"`
	MaxCycles    *int       `json:"max_cycles,omitempty" yaml:"max_cycles,omitempty"`
	Type         TimingType `json:"type" yaml:"type"`
	CogLUTTiming string     `json:"cog_lut_timing,omitempty" yaml:"cog_lut_timing,omitempty"`
	HubTiming    string     `json:"hub_timing,omitempty" yaml:"hub_timing,omitempty"`
	Notes        []string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	SourceNote   string     `json:"source_note,omitempty" yaml:"source_note,omitempty"`
}

// Clarification is one instruction section of a clarifications document,
// stored under layer4_chip_clarifications.
type Clarification struct {
	Source   string `json:"source" yaml:"source"`
	Title    string `json:"title" yaml:"title"`
	Syntax   string `json:"syntax" yaml:"syntax"`
	Function string `json:"function" yaml:"function"`
	UseCases string `json:"use_cases" yaml:"use_cases"`
	Date     string `json:"date" yaml:"date"`
}
