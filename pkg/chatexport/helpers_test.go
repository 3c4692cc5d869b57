package chatexport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	testNow       = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	testNowMillis = float64(testNow.UnixMilli())
)

// newTestDispatcher returns a Dispatcher with a frozen clock and
// predictable conversation IDs (conv-1, conv-2, ...)
func newTestDispatcher() *Dispatcher {
	n := 0
	return NewDispatcher(
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("conv-%d", n)
		}),
	)
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func extractFixture(t *testing.T, name string) []Conversation {
	t.Helper()
	data := readFixture(t, name)
	conversations, err := newTestDispatcher().Extract(data, name, int64(len(data)))
	require.NoError(t, err)
	return conversations
}

func ts(v float64) *float64 { return &v }

func roles(messages []Message) []Role {
	out := make([]Role, len(messages))
	for i, m := range messages {
		out[i] = m.Role
	}
	return out
}

func contents(messages []Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}
