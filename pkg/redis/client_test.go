package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsAddr(t *testing.T) {
	assert.Equal(t, "localhost:6379", Options{Host: "localhost", Port: 6379}.Addr())
}

func TestNewClient_Unreachable(t *testing.T) {
	// 127.0.0.1:1 은 열려 있지 않음
	client, err := NewClient(context.Background(), Options{Host: "127.0.0.1", Port: 1, DialTimeout: 200 * time.Millisecond})
	assert.Nil(t, client)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
