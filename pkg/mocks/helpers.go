package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockSwapClientForTest creates a new mock SwapClient for testing
func NewMockSwapClientForTest(t *testing.T) *MockSwapClient {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockSwapClient(ctrl)
}
