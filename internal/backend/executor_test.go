package backend

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	a := m.Called(ctx, name, args, stdin)
	out, _ := a.Get(0).([]byte)
	errOut, _ := a.Get(1).([]byte)
	return out, errOut, a.Error(2)
}

func TestExecutor_ExecuteAppliesTimeout(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), "/usr/bin/ffmpeg", []string{"-version"}, nil).Return([]byte("ffmpeg version 7"), []byte(nil), nil)

	e := NewExecutorWithRunner("/usr/bin/ffmpeg", time.Second, runner)
	out, _, err := e.Execute(context.Background(), []string{"-version"}, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "ffmpeg"))
	assert.Equal(t, "/usr/bin/ffmpeg", e.BinaryPath())

	runner.AssertExpectations(t)
}

func TestExecutor_PropagatesError(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.Anything, "tool", mock.Anything, mock.Anything).Return([]byte(nil), []byte("boom"), errors.New("exit status 1"))

	e := NewExecutorWithRunner("tool", time.Second, runner)
	_, stderr, err := e.Execute(context.Background(), nil, nil)
	assert.EqualError(t, err, "exit status 1")
	assert.Equal(t, "boom", string(stderr))
}

func TestNewExecutor_MissingBinary(t *testing.T) {
	_, err := NewExecutor("/definitely/not/here/ffmpeg", time.Second)
	assert.Error(t, err)
}

func TestServerManager_StartMissingBinary(t *testing.T) {
	sm := NewServerManager()
	err := sm.StartServer(ServerConfig{Name: "tfserving", BinPath: "/definitely/not/here", Port: 8501})
	assert.Error(t, err)
	assert.False(t, sm.IsRunning("tfserving", 8501))
}

func TestServerManager_StopUnknown(t *testing.T) {
	sm := NewServerManager()
	assert.Error(t, sm.StopServer("tfserving", 8501))
	sm.StopAll()
}
