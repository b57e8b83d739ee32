// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

var idSeq atomic.Int64

// UniqueUserID returns a user id that does not collide across tests sharing
// one database.
func UniqueUserID() int64 {
	return time.Now().UnixNano()/1000 + idSeq.Add(1)
}
