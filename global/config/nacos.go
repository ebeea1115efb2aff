package config

import (
	"sync"

	"SyncProject/logger"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConfigClient is the part of the nacos config client the watcher uses.
type ConfigClient interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(param vo.ConfigParam) error
	CancelListenConfig(param vo.ConfigParam) error
}

func NewNacosClient(c NacosConfig) (ConfigClient, error) {
	sc := []constant.ServerConfig{*constant.NewServerConfig(c.Host, c.Port)}
	cc := constant.NewClientConfig(
		constant.WithNamespaceId(c.Namespace),
		constant.WithTimeoutMs(5000),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel("warn"),
		constant.WithCacheDir("nacos/cache"),
		constant.WithLogDir("nacos/log"),
		constant.WithUsername(c.Username),
		constant.WithPassword(c.Password),
	)
	cli, err := clients.NewConfigClient(vo.NacosClientParam{ClientConfig: cc, ServerConfigs: sc})
	if err != nil {
		return nil, errors.Wrap(err, "create nacos config client")
	}
	return cli, nil
}

// Watcher keeps the current AppConfig in sync with a nacos data id.
// Only log.level takes effect without a restart.
type Watcher struct {
	cli   ConfigClient
	param vo.ConfigParam

	mu  sync.RWMutex
	cur AppConfig
}

func NewWatcher(cli ConfigClient, base AppConfig) *Watcher {
	return &Watcher{
		cli:   cli,
		param: vo.ConfigParam{DataId: base.Nacos.DataID, Group: base.Nacos.Group},
		cur:   base,
	}
}

// Start fetches the remote document once, overlays it and subscribes to
// changes.
func (w *Watcher) Start() (AppConfig, error) {
	content, err := w.cli.GetConfig(w.param)
	if err != nil {
		return w.Current(), errors.Wrapf(err, "nacos get %s/%s", w.param.Group, w.param.DataId)
	}
	if content != "" {
		if err := w.apply(content); err != nil {
			return w.Current(), err
		}
	}
	p := w.param
	p.OnChange = func(_, group, dataID, data string) {
		if err := w.apply(data); err != nil {
			logger.Warn("nacos config rejected", zap.String("group", group), zap.String("dataId", dataID), zap.Error(err))
		}
	}
	if err := w.cli.ListenConfig(p); err != nil {
		return w.Current(), errors.Wrap(err, "nacos listen")
	}
	return w.Current(), nil
}

func (w *Watcher) Stop() error {
	return w.cli.CancelListenConfig(w.param)
}

func (w *Watcher) Current() AppConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

func (w *Watcher) apply(data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := Parse([]byte(data), w.cur)
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if next.Log.Level != w.cur.Log.Level {
		if err := logger.SetLevel(next.Log.Level); err != nil {
			return err
		}
		logger.Info("log level changed", zap.String("level", next.Log.Level))
	}
	w.cur = next
	return nil
}
