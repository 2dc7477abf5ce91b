package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockIDs(blocks []ContentBlock) []string {
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}
	return ids
}

func TestDefaultPreset(t *testing.T) {
	preset := DefaultPreset("default")
	assert.Equal(t, "default", preset.Name)
	assert.Equal(t, HistoryMerged, preset.HistoryMode)
	assert.Equal(t,
		[]string{BlockSystemPrompt, BlockChatHistory, BlockPlotOutline, BlockInstruction},
		blockIDs(preset.Blocks))
	for _, b := range preset.Blocks {
		assert.True(t, b.Enabled, "block %s should start enabled", b.ID)
	}
}

func TestMoveBlock(t *testing.T) {
	blocks := DefaultPreset("t").Blocks

	t.Run("move to front", func(t *testing.T) {
		out, err := MoveBlock(blocks, BlockInstruction, 0)
		require.NoError(t, err)
		assert.Equal(t,
			[]string{BlockInstruction, BlockSystemPrompt, BlockChatHistory, BlockPlotOutline},
			blockIDs(out))
	})

	t.Run("move backward", func(t *testing.T) {
		out, err := MoveBlock(blocks, BlockPlotOutline, 1)
		require.NoError(t, err)
		assert.Equal(t,
			[]string{BlockSystemPrompt, BlockPlotOutline, BlockChatHistory, BlockInstruction},
			blockIDs(out))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := MoveBlock(blocks, "nope", 0)
		assert.Error(t, err)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := MoveBlock(blocks, BlockInstruction, 9)
		assert.Error(t, err)
	})

	t.Run("original slice untouched", func(t *testing.T) {
		_, err := MoveBlock(blocks, BlockInstruction, 0)
		require.NoError(t, err)
		assert.Equal(t, BlockSystemPrompt, blocks[0].ID)
	})
}

func TestInsertBlock(t *testing.T) {
	blocks := DefaultPreset("t").Blocks
	custom := NewCustomBlock("Style", "Keep the prose sparse.")
	require.NotEmpty(t, custom.ID)
	assert.False(t, IsFixedBlock(custom.ID))

	out := InsertBlock(blocks, 2, custom)
	require.Len(t, out, 5)
	assert.Equal(t, custom.ID, out[2].ID)

	t.Run("clamped indexes", func(t *testing.T) {
		out := InsertBlock(blocks, -5, custom)
		assert.Equal(t, custom.ID, out[0].ID)
		out = InsertBlock(blocks, 99, custom)
		assert.Equal(t, custom.ID, out[len(out)-1].ID)
	})
}

func TestDeleteBlock(t *testing.T) {
	custom := NewCustomBlock("Style", "x")
	blocks := InsertBlock(DefaultPreset("t").Blocks, 4, custom)

	t.Run("deletes custom block", func(t *testing.T) {
		out, err := DeleteBlock(blocks, custom.ID)
		require.NoError(t, err)
		assert.Len(t, out, 4)
	})

	t.Run("refuses built-in blocks", func(t *testing.T) {
		for _, id := range []string{BlockSystemPrompt, BlockChatHistory, BlockPlotOutline, BlockInstruction} {
			_, err := DeleteBlock(blocks, id)
			assert.Error(t, err, "block %s must not be deletable", id)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := DeleteBlock(blocks, "nope")
		assert.Error(t, err)
	})
}
