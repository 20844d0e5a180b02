package cmd

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"schls/cache"
	"schls/config"
	"schls/core/audio"
	"schls/core/codec"
	"schls/core/downloader"
	"schls/core/soundcloud"
	"schls/db"
	"schls/logger"
	"schls/repository"
	"schls/storage"
)

type appOptions struct {
	console bool
	// history opens the download history database.
	history bool
	// offline skips the client_id check for commands that never call the API.
	offline bool
}

// app holds everything a command needs, built from the config file.
type app struct {
	cfg        *config.Config
	configPath string

	client    *soundcloud.Client
	processor *audio.FFmpegProcessor
	svc       *downloader.Service

	gdb      *gorm.DB
	history  repository.HistoryRepository
	redis    *redis.Client
	uploader *storage.Uploader
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(clientID, oauthToken)
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logCfg.OutputPath = cfg.LogFile
	logCfg.Console = opts.console
	if err := logger.InitLogger(logCfg); err != nil {
		return nil, err
	}

	if !opts.offline {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, configPath: configPath}
	if a.configPath == "" {
		a.configPath = config.DefaultPath
	}

	a.client = soundcloud.NewClient(cfg.ClientID, cfg.OAuth)
	if cfg.RedisEnabled() {
		rdb, err := cache.ConnectRedis(ctx, cfg)
		if err != nil {
			logger.Warn("track cache disabled", logger.String("addr", cfg.RedisAddr), logger.ErrorField(err))
		} else {
			a.redis = rdb
			a.client.SetTrackStore(cache.NewTrackCache(rdb, cfg.CacheTTLDuration()))
		}
	}

	a.processor = audio.NewFFmpegProcessor(cfg.FFmpegPath,
		audio.WithProgressDivisor(audio.MicrosecondsPerMillisecond))

	if opts.history {
		gdb, err := db.Open(cfg.HistoryDSN)
		if err != nil {
			logger.Warn("download history disabled", logger.String("dsn", cfg.HistoryDSN), logger.ErrorField(err))
		} else {
			a.gdb = gdb
			a.history = repository.NewGormHistoryRepository(gdb)
		}
	}

	if cfg.MinioEnabled() {
		up, err := storage.NewUploader(ctx, cfg)
		if err != nil {
			logger.Warn("object storage disabled", logger.String("endpoint", cfg.MinioEndpoint), logger.ErrorField(err))
		} else {
			a.uploader = up
		}
	}

	defaultCodec, _ := codec.Parse(cfg.Codec)
	svcOpts := downloader.Options{
		History:      a.history,
		OutputDir:    cfg.OutputDir,
		DefaultCodec: defaultCodec,
	}
	if a.uploader != nil {
		svcOpts.Uploader = a.uploader
	}
	a.svc = downloader.NewService(a.client, a.processor, svcOpts)

	return a, nil
}

// checkFFmpeg fails fast when ffmpeg cannot be run.
func (a *app) checkFFmpeg(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	version, err := a.processor.CheckAvailable(ctx)
	if err != nil {
		return err
	}
	logger.Debug("ffmpeg found", logger.String("path", a.processor.FFmpegPath()), logger.String("version", version))
	return nil
}

func (a *app) Close() {
	if a.gdb != nil {
		if err := db.Close(a.gdb); err != nil {
			logger.Warn("close history database", logger.ErrorField(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("close redis", logger.ErrorField(err))
		}
	}
	logger.Sync()
}
