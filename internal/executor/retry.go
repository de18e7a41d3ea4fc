package executor

import "sync"

// retryState tracks attempts for one task.
type retryState struct {
	TaskID    string
	Attempts  int
	LastError string
}

// retryManager tracks retry attempts per task.
// It is thread-safe and can be used concurrently.
type retryManager struct {
	mu     sync.RWMutex
	states map[string]*retryState
}

func newRetryManager() *retryManager {
	return &retryManager{states: make(map[string]*retryState)}
}

// recordFailure increments the attempt count for a task and stores the
// failure cause.
func (m *retryManager) recordFailure(taskID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[taskID]
	if !ok {
		state = &retryState{TaskID: taskID}
		m.states[taskID] = state
	}
	state.Attempts++
	if err != nil {
		state.LastError = err.Error()
	}
}

// attempts returns the recorded failed attempts for a task.
func (m *retryManager) attempts(taskID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[taskID]; ok {
		return state.Attempts
	}
	return 0
}

// lastError returns the most recent failure cause for a task.
func (m *retryManager) lastError(taskID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[taskID]; ok {
		return state.LastError
	}
	return ""
}

// reset clears the retry state for a task.
func (m *retryManager) reset(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, taskID)
}
