package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectRegistryIssueAndRedeem(t *testing.T) {
	reg := NewReconnectRegistry(time.Minute)
	token := reg.Issue("galaxy-1", "0xaaa")

	roomID, addr, ok := reg.Redeem(token)
	require.True(t, ok)
	assert.Equal(t, "galaxy-1", roomID)
	assert.Equal(t, "0xaaa", addr)
}

func TestReconnectRegistryRedeemUnknownTokenFails(t *testing.T) {
	reg := NewReconnectRegistry(time.Minute)
	_, _, ok := reg.Redeem("never-issued")
	assert.False(t, ok)
}

func TestReconnectRegistryRedeemDoesNotConsumeToken(t *testing.T) {
	reg := NewReconnectRegistry(time.Minute)
	token := reg.Issue("galaxy-1", "0xaaa")

	_, _, ok1 := reg.Redeem(token)
	_, _, ok2 := reg.Redeem(token)
	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestReconnectRegistryRevokeInvalidatesToken(t *testing.T) {
	reg := NewReconnectRegistry(time.Minute)
	token := reg.Issue("galaxy-1", "0xaaa")
	reg.Revoke(token)

	_, _, ok := reg.Redeem(token)
	assert.False(t, ok)
}
