package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"

	retry "github.com/avast/retry-go/v4"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/openfabric/pipeliner/internal/models"
)

const bindingKeyPrefix = "/pipeliner/bindings"

func bindingKey(deviceID string, nextID uint32) string {
	return path.Join(bindingKeyPrefix, deviceID, strconv.FormatUint(uint64(nextID), 10))
}

// Store persists next-group bindings in etcd. A binding is written once
// per successful group resolution and read by every forwarding objective
// that references the next ID.
type Store struct {
	etcd     *clientv3.Client
	deviceID string
}

func NewStore(ctx context.Context, host string, deviceID string) (*Store, error) {
	clnt, err := clientv3.New(clientv3.Config{
		Endpoints: []string{host},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return &Store{etcd: clnt, deviceID: deviceID}, nil
}

func (s *Store) Put(ctx context.Context, binding models.NextGroupBinding) error {
	value, err := json.Marshal(binding)
	if err != nil {
		return fmt.Errorf("failed to encode binding for next %d: %w", binding.NextID, err)
	}
	err = retry.Do(
		func() error {
			_, err := s.etcd.Put(ctx, bindingKey(s.deviceID, binding.NextID), string(value))
			return err
		},
		retry.Attempts(3),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to persist binding for next %d: %w", binding.NextID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, nextID uint32) (*models.NextGroupBinding, error) {
	resp, err := s.etcd.Get(ctx, bindingKey(s.deviceID, nextID))
	if err != nil {
		return nil, fmt.Errorf("failed to get binding for next %d: %w", nextID, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, models.ErrGroupMissing
	}
	binding := models.NextGroupBinding{}
	err = json.Unmarshal(resp.Kvs[0].Value, &binding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode binding for next %d: %w", nextID, err)
	}
	return &binding, nil
}

func (s *Store) Close() error {
	return s.etcd.Close()
}
