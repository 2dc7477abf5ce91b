// Package prompt assembles ordered content blocks into the normalized
// message list sent to the guidance model.
package prompt

import (
	"fmt"

	"github.com/google/uuid"

	"director/internal/llm"
)

// Kind selects how a block's body is resolved at assembly time.
type Kind string

const (
	// KindSystemPrompt resolves to the preset's system prompt.
	KindSystemPrompt Kind = "system_prompt"

	// KindChatHistory resolves to the recent conversation rendered per the
	// preset's history mode.
	KindChatHistory Kind = "chat_history"

	// KindPlotOutline resolves to the configured outline text, gated by the
	// prompt-injection round window.
	KindPlotOutline Kind = "plot_outline"

	// KindLiteral resolves to the block's own Content field. The built-in
	// instruction block and all custom blocks are literals.
	KindLiteral Kind = "literal"
)

// Fixed block IDs. These four blocks exist in every preset and cannot be
// deleted; custom blocks carry generated IDs.
const (
	BlockSystemPrompt = "system_prompt"
	BlockChatHistory  = "chat_history"
	BlockPlotOutline  = "plot_outline"
	BlockInstruction  = "instruction"
)

// ContentBlock is one entry in a preset's ordered block list.
type ContentBlock struct {
	ID      string  `yaml:"id" json:"id"`
	Kind    Kind    `yaml:"kind" json:"kind"`
	Role    string  `yaml:"role" json:"role"` // system or user
	Label   string  `yaml:"label" json:"label"`
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Content *string `yaml:"content,omitempty" json:"content,omitempty"` // literals only
	WrapTag string  `yaml:"wrap_tag,omitempty" json:"wrap_tag,omitempty"`
}

// HistoryMode selects how the chat_history block renders turns.
type HistoryMode string

const (
	// HistoryMerged flattens turns into speaker-attributed lines with no
	// role metadata.
	HistoryMerged HistoryMode = "merged"

	// HistoryTagged prefixes each turn with its role.
	HistoryTagged HistoryMode = "tagged"
)

// Preset bundles a system prompt with an ordered block list.
type Preset struct {
	Name         string         `yaml:"name" json:"name"`
	SystemPrompt string         `yaml:"system_prompt" json:"system_prompt"`
	Blocks       []ContentBlock `yaml:"blocks" json:"blocks"`
	HistoryMode  HistoryMode    `yaml:"history_mode" json:"history_mode"`
}

// defaultInstruction is the guidance request sent when a preset has no
// customized instruction block.
const defaultInstruction = "Based on the story so far, give the next " +
	"narrative direction: what should happen next, which characters act, " +
	"and what tone to hold. Reply with the direction only."

// DefaultPreset returns a preset with the four built-in blocks in their
// standard order.
func DefaultPreset(name string) Preset {
	instruction := defaultInstruction
	return Preset{
		Name:         name,
		SystemPrompt: "You are a story director. You guide an ongoing roleplay by issuing short, concrete narrative directions.",
		HistoryMode:  HistoryMerged,
		Blocks: []ContentBlock{
			{ID: BlockSystemPrompt, Kind: KindSystemPrompt, Role: llm.RoleSystem, Label: "System Prompt", Enabled: true},
			{ID: BlockChatHistory, Kind: KindChatHistory, Role: llm.RoleUser, Label: "Chat History", Enabled: true, WrapTag: "story"},
			{ID: BlockPlotOutline, Kind: KindPlotOutline, Role: llm.RoleUser, Label: "Plot Outline", Enabled: true, WrapTag: "outline"},
			{ID: BlockInstruction, Kind: KindLiteral, Role: llm.RoleUser, Label: "Instruction", Enabled: true, Content: &instruction},
		},
	}
}

// NewCustomBlock creates a literal block with a generated ID.
func NewCustomBlock(label, content string) ContentBlock {
	return ContentBlock{
		ID:      uuid.NewString(),
		Kind:    KindLiteral,
		Role:    llm.RoleUser,
		Label:   label,
		Enabled: true,
		Content: &content,
	}
}

// IsFixedBlock reports whether id names one of the built-in blocks.
func IsFixedBlock(id string) bool {
	switch id {
	case BlockSystemPrompt, BlockChatHistory, BlockPlotOutline, BlockInstruction:
		return true
	}
	return false
}

// MoveBlock moves the block with the given ID to the target index,
// preserving the relative order of the others.
func MoveBlock(blocks []ContentBlock, id string, to int) ([]ContentBlock, error) {
	from := indexOf(blocks, id)
	if from < 0 {
		return blocks, fmt.Errorf("block %q not found", id)
	}
	if to < 0 || to >= len(blocks) {
		return blocks, fmt.Errorf("index %d out of range", to)
	}
	out := make([]ContentBlock, 0, len(blocks))
	out = append(out, blocks[:from]...)
	out = append(out, blocks[from+1:]...)
	out = append(out[:to], append([]ContentBlock{blocks[from]}, out[to:]...)...)
	return out, nil
}

// InsertBlock inserts a block at the given index. An index beyond the end
// appends.
func InsertBlock(blocks []ContentBlock, index int, block ContentBlock) []ContentBlock {
	if index < 0 {
		index = 0
	}
	if index > len(blocks) {
		index = len(blocks)
	}
	out := make([]ContentBlock, 0, len(blocks)+1)
	out = append(out, blocks[:index]...)
	out = append(out, block)
	out = append(out, blocks[index:]...)
	return out
}

// DeleteBlock removes the block with the given ID. Built-in blocks cannot
// be deleted; disable them instead.
func DeleteBlock(blocks []ContentBlock, id string) ([]ContentBlock, error) {
	if IsFixedBlock(id) {
		return blocks, fmt.Errorf("block %q is built-in and cannot be deleted", id)
	}
	i := indexOf(blocks, id)
	if i < 0 {
		return blocks, fmt.Errorf("block %q not found", id)
	}
	return append(blocks[:i:i], blocks[i+1:]...), nil
}

func indexOf(blocks []ContentBlock, id string) int {
	for i, b := range blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}
