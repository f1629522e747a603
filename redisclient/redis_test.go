package redisclient_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Julianlamaravilla/yuno-nebula/config"
	"github.com/Julianlamaravilla/yuno-nebula/redisclient"
)

func TestClientPingSucceedsAgainstLiveServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := redisclient.New(&config.Config{RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	if err := client.Ping(); err != nil {
		t.Fatalf("expected ping to succeed, got: %v", err)
	}
}

func TestClientNewRejectsInvalidURL(t *testing.T) {
	if _, err := redisclient.New(&config.Config{RedisURL: "not-a-url://\x00"}); err == nil {
		t.Fatal("expected an error for an invalid REDIS_URL")
	}
}

func TestClientRawExposesUnderlyingCommands(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := redisclient.New(&config.Config{RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	if err := client.Raw().Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := client.Raw().Get(context.Background(), "k").Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected v, got %s", got)
	}
}
