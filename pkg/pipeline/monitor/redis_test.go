package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/pipexec/pkg/pipeline"
	"github.com/vnykmshr/pipexec/pkg/topology"
)

// fakeHashWriter records writes instead of talking to a server.
type fakeHashWriter struct {
	mu      sync.Mutex
	hashes  map[string]map[string]interface{}
	expires map[string]time.Duration
	failOn  string
}

func newFakeHashWriter() *fakeHashWriter {
	return &fakeHashWriter{
		hashes:  make(map[string]map[string]interface{}),
		expires: make(map[string]time.Duration),
	}
}

func (f *fakeHashWriter) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, append([]interface{}{"hset", key}, values...)...)
	if key == f.failOn {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	h := make(map[string]interface{})
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1]
	}
	f.hashes[key] = h
	cmd.SetVal(int64(len(h)))
	return cmd
}

func (f *fakeHashWriter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "expire", key, expiration)
	f.mu.Lock()
	f.expires[key] = expiration
	f.mu.Unlock()
	cmd.SetVal(true)
	return cmd
}

var _ HashWriter = (*fakeHashWriter)(nil)
var _ HashWriter = (redis.UniversalClient)(nil)

func TestRedisPublisherWritesHashes(t *testing.T) {
	client := newFakeHashWriter()
	p := NewRedisPublisher(client, "", time.Minute)

	stats := []pipeline.NodeStats{
		{ID: 0, Name: "head", Address: topology.Address{}, Instances: 1, QueueLen: 2, QueueCap: 8},
		{ID: 1, Address: topology.Address{X: 1}, Instances: 3, MaxInstances: 4},
	}
	if err := p.Publish(context.Background(), "orders", stats); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	head, ok := client.hashes["pipexec:orders:[0:0:0]"]
	if !ok {
		t.Fatalf("head hash missing, have %v", client.hashes)
	}
	if head["name"] != "head" || head["queue_len"] != 2 || head["queue_cap"] != 8 {
		t.Errorf("unexpected head hash %v", head)
	}
	second := client.hashes["pipexec:orders:[1:0:0]"]
	if second["instances"] != 3 || second["max_instances"] != 4 {
		t.Errorf("unexpected second hash %v", second)
	}
	if got := client.expires["pipexec:orders:[1:0:0]"]; got != time.Minute {
		t.Errorf("ttl = %v, want 1m", got)
	}
}

func TestRedisPublisherNoTTL(t *testing.T) {
	client := newFakeHashWriter()
	p := NewRedisPublisher(client, "etl", 0)

	if err := p.Publish(context.Background(), "t", []pipeline.NodeStats{{}}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if _, ok := client.hashes["etl:t:[0:0:0]"]; !ok {
		t.Error("hash not written under custom prefix")
	}
	if len(client.expires) != 0 {
		t.Errorf("expire called without ttl: %v", client.expires)
	}
}

func TestRedisPublisherError(t *testing.T) {
	client := newFakeHashWriter()
	client.failOn = "pipexec:t:[1:0:0]"
	p := NewRedisPublisher(client, "pipexec", 0)

	stats := []pipeline.NodeStats{
		{Address: topology.Address{X: 1}},
		{Address: topology.Address{X: 2}},
	}
	err := p.Publish(context.Background(), "t", stats)
	if err == nil {
		t.Fatal("expected publish error")
	}
	if _, ok := client.hashes["pipexec:t:[2:0:0]"]; ok {
		t.Error("publishing continued after a failure")
	}
}
