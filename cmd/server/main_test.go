package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashKey(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, hashKey(&out, "svc-key-1", bcrypt.MinCost))

	hash := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(hash, "$2a$"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("svc-key-1")))
}

func TestHashKey_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		cost int
	}{
		{"empty key", "  ", bcrypt.MinCost},
		{"cost too high", "svc-key-1", bcrypt.MaxCost + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, hashKey(&out, tt.key, tt.cost))
			assert.Empty(t, out.String())
		})
	}
}
