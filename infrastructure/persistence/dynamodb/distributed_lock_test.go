package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDistributedLock_LockAndRelease(t *testing.T) {
	client := new(mockDynamoDB)
	locker := NewDistributedLock(client, "reqgraph", 30*time.Second, time.Second, zap.NewNop())

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return stringAttr(in.Item, "PK") == "LOCK#PROJECT#p1" && stringAttr(in.Item, "SK") == "LOCK"
	})).Return(&dynamodb.PutItemOutput{}, nil)
	client.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return stringAttr(in.Key, "PK") == "LOCK#PROJECT#p1"
	})).Return(&dynamodb.DeleteItemOutput{}, nil)

	unlock, err := locker.Lock(context.Background(), "p1")
	require.NoError(t, err)
	unlock()

	client.AssertNumberOfCalls(t, "PutItem", 1)
	client.AssertNumberOfCalls(t, "DeleteItem", 1)
}

func TestDistributedLock_HeldLockTimesOut(t *testing.T) {
	client := new(mockDynamoDB)
	locker := NewDistributedLock(client, "reqgraph", 30*time.Second, 0, zap.NewNop())
	client.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	_, err := locker.Lock(context.Background(), "p1")

	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), "timeout")
}

func TestDistributedLock_CancelledWhileWaiting(t *testing.T) {
	client := new(mockDynamoDB)
	locker := NewDistributedLock(client, "reqgraph", 30*time.Second, time.Minute, zap.NewNop())
	client.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := locker.Lock(ctx, "p1")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDistributedLock_ReleaseAfterTakeover(t *testing.T) {
	client := new(mockDynamoDB)
	locker := NewDistributedLock(client, "reqgraph", time.Second, time.Second, zap.NewNop())
	client.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	err := locker.ReleaseLock(context.Background(), "PROJECT#p1", "stale")

	assert.NoError(t, err)
}
