package testutil

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// GenerateCall records one call to MockGenerator.Generate.
type GenerateCall struct {
	Prompt  string
	Context string
}

// MockGenerator is a scripted text generator. It is safe for concurrent use.
type MockGenerator struct {
	mu sync.Mutex

	// GenerateFunc produces the response. The default echoes the community
	// named in the prompt.
	GenerateFunc func(ctx context.Context, prompt, contextText string) (string, error)

	calls []GenerateCall
}

// NewMockGenerator creates a generator with a deterministic default response.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{GenerateFunc: EchoCommunity}
}

// Generate records the call and delegates to GenerateFunc.
func (m *MockGenerator) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{Prompt: prompt, Context: contextText})
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn == nil {
		return EchoCommunity(ctx, prompt, contextText)
	}
	return fn(ctx, prompt, contextText)
}

// Calls returns a copy of the recorded calls in call order.
func (m *MockGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GenerateCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the calls whose prompt describes community id at level.
func (m *MockGenerator) CallsFor(id string, level int) []GenerateCall {
	var out []GenerateCall
	for _, c := range m.Calls() {
		if gotID, gotLevel, ok := PromptCommunity(c.Prompt); ok && gotID == id && gotLevel == level {
			out = append(out, c)
		}
	}
	return out
}

var promptCommunity = regexp.MustCompile(`Community (\S+) \(level (\d+)`)

// PromptCommunity extracts the community ID and level named in a prompt.
func PromptCommunity(prompt string) (string, int, bool) {
	m := promptCommunity.FindStringSubmatch(prompt)
	if m == nil {
		return "", 0, false
	}
	var level int
	if _, err := fmt.Sscanf(m[2], "%d", &level); err != nil {
		return "", 0, false
	}
	return m[1], level, true
}

// EchoCommunity answers "summary of <id> at level <n>" for the community
// named in the prompt.
func EchoCommunity(_ context.Context, prompt, _ string) (string, error) {
	id, level, ok := PromptCommunity(prompt)
	if !ok {
		return "summary", nil
	}
	return fmt.Sprintf("summary of %s at level %d", id, level), nil
}

// MockError is a simple error with a code for error handling tests.
type MockError struct {
	Message string
	Code    string
}

func (e *MockError) Error() string {
	return e.Message
}

// NewMockError creates a new mock error.
func NewMockError(message, code string) error {
	return &MockError{Message: message, Code: code}
}
