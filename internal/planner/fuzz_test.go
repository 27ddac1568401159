// internal/planner/fuzz_test.go
package planner

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	json "github.com/json-iterator/go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/config"
)

// FuzzOpenAIPlanner_BuildMessages hammers the wire-conversation assembly with
// arbitrary request shapes. Whatever the transcript looks like, the output
// must satisfy the chat-completions protocol: a single system message opening
// the conversation, the visitor's ask present as a user message, and every
// tool message anchored to an assistant message that declares tool calls.
func FuzzOpenAIPlanner_BuildMessages(f *testing.F) {
	f.Add([]byte("show me the contact form"))
	f.Add([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	p, err := NewOpenAI(config.PlannerConfig{APIKey: "test-key", Model: "gpt-4o-mini"}, zap.NewNop())
	require.NoError(f, err)

	f.Fuzz(func(t *testing.T, data []byte) {
		fuzzConsumer := fuzz.NewConsumer(data)
		req := &schemas.PlanRequest{}
		if err := fuzzConsumer.GenerateStruct(req); err != nil {
			return // Ignore inputs that can't be mapped to the struct.
		}

		msgs, err := p.buildMessages(req)
		if err != nil {
			return
		}
		require.GreaterOrEqual(t, len(msgs), 2)
		require.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)

		var sawAsk bool
		for i := 1; i < len(msgs); i++ {
			m := msgs[i]
			require.NotEqual(t, openai.ChatMessageRoleSystem, m.Role,
				"only the opening message may carry the system role")
			if m.Role == openai.ChatMessageRoleUser && m.Content == req.Message {
				sawAsk = true
			}
			if m.Role != openai.ChatMessageRoleTool {
				continue
			}
			// Walk back over the run of tool messages to the message that
			// introduced it.
			j := i - 1
			for msgs[j].Role == openai.ChatMessageRoleTool {
				j--
			}
			require.Equal(t, openai.ChatMessageRoleAssistant, msgs[j].Role,
				"tool output at %d is not anchored to an assistant message", i)
			require.NotEmpty(t, msgs[j].ToolCalls,
				"anchoring assistant message at %d declares no tool calls", j)
		}
		require.True(t, sawAsk, "the visitor's message was dropped from the conversation")

		// The assembled conversation must survive serialization for the wire.
		if _, err := json.Marshal(msgs); err != nil {
			t.Errorf("assembled messages do not marshal: %v", err)
		}
	})
}
