package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubCategorizeBatchIsDeterministic(t *testing.T) {
	stub := &Stub{}
	categories := []string{"Groceries", "Dining", "Subscriptions", "Uncategorized"}
	descriptions := []string{"DINING ROOM SUPPLY", "XYZZY UNKNOWN VENDOR"}

	first, err := stub.CategorizeBatch(context.Background(), descriptions, categories)
	require.NoError(t, err)
	second, err := stub.CategorizeBatch(context.Background(), descriptions, categories)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Dining", first[0].Category)
	assert.NotEmpty(t, first[1].Category)
}

func TestStubForcedFailures(t *testing.T) {
	stub := &Stub{FailCategorize: true, FailSummarize: true}

	_, err := stub.CategorizeBatch(context.Background(), []string{"X"}, []string{"Dining"})
	assert.Error(t, err)

	_, err = stub.GenerateInsights(context.Background(), SpendingStats{TotalSpending: 10}, 3)
	assert.Error(t, err)

	_, err = stub.GoalAdvice(context.Background(), SpendingStats{}, 100, true)
	assert.Error(t, err)
}

func TestStubGoalAdvice(t *testing.T) {
	stub := &Stub{}

	advice, err := stub.GoalAdvice(context.Background(), SpendingStats{}, 250, true)
	require.NoError(t, err)
	assert.Contains(t, advice, "$250.00")

	advice, err = stub.GoalAdvice(context.Background(), SpendingStats{}, 5000, false)
	require.NoError(t, err)
	assert.Contains(t, advice, "ambitious")
}
