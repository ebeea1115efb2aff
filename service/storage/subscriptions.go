package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const SubsFilename = "ws_subs.json"

// Subscription is the diagnostic record kept for one live connection.
// The address fields stay empty until the connection joins a channel.
type Subscription struct {
	XForwardedFor string `json:"xForwardedFor,omitempty"`
	RemoteAddress string `json:"remoteAddress,omitempty"`
	ClientID      string `json:"clientId"`
}

// SubscriptionSink persists the current set of live connections. Each
// Save replaces the previous snapshot.
type SubscriptionSink interface {
	Save(ctx context.Context, subs []Subscription) error
}

// NopSink discards snapshots.
type NopSink struct{}

func (NopSink) Save(context.Context, []Subscription) error { return nil }

// FileSink writes the snapshot as a JSON array to Dir/ws_subs.json.
type FileSink struct {
	Dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "res"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create res dir %s", dir)
	}
	return &FileSink{Dir: dir}, nil
}

func (s *FileSink) Path() string { return filepath.Join(s.Dir, SubsFilename) }

func (s *FileSink) Save(_ context.Context, subs []Subscription) error {
	if subs == nil {
		subs = []Subscription{}
	}
	b, err := json.Marshal(subs)
	if err != nil {
		return errors.Wrap(err, "marshal subs")
	}
	tmp, err := os.CreateTemp(s.Dir, SubsFilename+".*")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "write temp")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "close temp")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.Path()), "rename subs")
}

// LoadSubscriptions reads a snapshot written by FileSink.
func LoadSubscriptions(path string) ([]Subscription, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []Subscription
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return out, nil
}
