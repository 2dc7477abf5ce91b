package prompt

import (
	"strings"

	"director/internal/chat"
	"director/internal/llm"
	"director/internal/logging"
)

// Env carries the per-round inputs the assembler resolves block bodies
// against.
type Env struct {
	Turns        []chat.Turn
	HistoryLimit int // recent turns to include; 0 = all

	Round         int
	Outline       string
	OutlineRounds int // prompt-injection cutoff; 0 = every round
}

// Assembler turns a preset's block list into the normalized message list.
// The zero value is ready to use.
type Assembler struct{}

// Assemble resolves every enabled block in order and folds the results into
// messages: system-role bodies become system messages, everything else is
// joined with blank lines into a single trailing user message. Blocks whose
// resolved body is empty or whitespace contribute nothing.
func (a *Assembler) Assemble(preset Preset, env Env) []llm.Message {
	var messages []llm.Message
	var userParts []string

	for _, block := range preset.Blocks {
		if !block.Enabled {
			continue
		}
		body := a.resolve(block, preset, env)
		if strings.TrimSpace(body) == "" {
			logging.AssemblerDebug("block %s: empty body, skipped", block.ID)
			continue
		}
		body = wrap(block.WrapTag, body)

		if block.Role == llm.RoleSystem {
			messages = append(messages, llm.NewSystemMessage(body))
			continue
		}
		userParts = append(userParts, body)
	}

	if len(userParts) > 0 {
		messages = append(messages, llm.NewUserMessage(strings.Join(userParts, "\n\n")))
	}
	logging.Assembler("assembled %d messages from %d blocks (round %d)",
		len(messages), len(preset.Blocks), env.Round)
	return messages
}

// resolve produces a block's body text.
func (a *Assembler) resolve(block ContentBlock, preset Preset, env Env) string {
	switch block.Kind {
	case KindSystemPrompt:
		return preset.SystemPrompt
	case KindChatHistory:
		return renderHistory(env.Turns, env.HistoryLimit, preset.HistoryMode)
	case KindPlotOutline:
		if env.OutlineRounds > 0 && env.Round > env.OutlineRounds {
			logging.AssemblerDebug("outline past round window (%d > %d), skipped",
				env.Round, env.OutlineRounds)
			return ""
		}
		return env.Outline
	case KindLiteral:
		if block.Content == nil {
			return ""
		}
		return *block.Content
	}
	return ""
}

// renderHistory renders the most recent turns, oldest first. System notices
// (connection banners, slash-command output) never reach the guidance
// model.
func renderHistory(turns []chat.Turn, limit int, mode HistoryMode) string {
	var kept []chat.Turn
	for _, t := range turns {
		if t.IsSystemNotice {
			continue
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		kept = append(kept, t)
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}

	parts := make([]string, 0, len(kept))
	for _, t := range kept {
		if mode == HistoryTagged {
			role := llm.RoleAssistant
			if t.IsUserAuthored {
				role = llm.RoleUser
			}
			parts = append(parts, role+": "+t.Text)
		} else {
			parts = append(parts, t.Author+": "+t.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// wrap surrounds body with <tag>...</tag> on their own lines. An empty tag
// is a pass-through.
func wrap(tag, body string) string {
	if tag == "" {
		return body
	}
	return "<" + tag + ">\n" + body + "\n</" + tag + ">"
}
