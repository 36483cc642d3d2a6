package nlu

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

var fastRetry = RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

type reply struct {
	text string
	err  error
}

// fakeConverse replays canned replies; the last one repeats.
type fakeConverse struct {
	mu      sync.Mutex
	replies []reply
	inputs  []*bedrockruntime.ConverseInput
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inputs = append(f.inputs, in)
	r := f.replies[min(len(f.inputs), len(f.replies))-1]
	if r.err != nil {
		return nil, r.err
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: r.text}},
		}},
	}, nil
}

func (f *fakeConverse) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func (f *fakeConverse) userText(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[i].Messages[0].Content[0].(*brtypes.ContentBlockMemberText).Value
}

func (f *fakeConverse) systemText(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[i].System[0].(*brtypes.SystemContentBlockMemberText).Value
}

type fakeKnowledgeBase struct {
	out    *bedrockagentruntime.RetrieveAndGenerateOutput
	err    error
	inputs []*bedrockagentruntime.RetrieveAndGenerateInput
}

func (f *fakeKnowledgeBase) RetrieveAndGenerate(_ context.Context, in *bedrockagentruntime.RetrieveAndGenerateInput, _ ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
	f.inputs = append(f.inputs, in)
	return f.out, f.err
}

type fakeTranslator struct {
	text string
	err  error
}

func (f fakeTranslator) Translate(context.Context, string) (string, error) {
	return f.text, f.err
}
