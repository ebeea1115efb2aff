package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SyncProject/module/channel"
	"SyncProject/service/export"
)

func TestBuildBaseConfig(t *testing.T) {
	cfg, err := BuildBaseConfig(Config{Version: "2.8.0", Compression: "lz4"})
	require.NoError(t, err)
	assert.Equal(t, sarama.V2_8_0_0, cfg.Version)
	assert.Equal(t, sarama.CompressionLZ4, cfg.Producer.Compression)
	assert.Equal(t, 1, cfg.Producer.Retry.Max)
	assert.True(t, cfg.Producer.Return.Successes)

	_, err = BuildBaseConfig(Config{Version: "not-a-version"})
	assert.Error(t, err)
}

func TestPublisher_SendsRecord(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var rec export.Record
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.ChannelID != "c1" || rec.Event.Nonce != 7 {
			return errors.New("unexpected record")
		}
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherFromProducer(mp, "")
	rec := export.Record{ChannelID: "c1", Gateway: "gw", Event: channel.Event{Action: channel.ActionMessage, Nonce: 7}}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), rec, payload))
	assert.ErrorIs(t, p.Publish(context.Background(), rec, payload), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestNewPublisher_NeedsBrokers(t *testing.T) {
	_, err := NewPublisher(Config{})
	assert.Error(t, err)
}
