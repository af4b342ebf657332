package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zeptofine/blrs-cli/internal/utils"
	"github.com/zeptofine/blrs-cli/pkg/catalog"
	"github.com/zeptofine/blrs-cli/pkg/extract"
	"github.com/zeptofine/blrs-cli/pkg/library"
	"github.com/zeptofine/blrs-cli/pkg/repos"
	"github.com/zeptofine/blrs-cli/pkg/storage"
	"github.com/zeptofine/blrs-cli/pkg/syncer"
)

// app bundles everything a command needs: the immutable config, the
// persisted catalog/library state, and the sync manager. Constructed
// once per invocation and handed down by reference.
type app struct {
	cfg  repos.Config
	db   *storage.DB
	lock *utils.DBLock
	set  *catalog.Set
	lib  *library.Library
	sync *syncer.Syncer
}

// openApp loads the configuration, locks and opens the database, and
// restores the cached catalogs.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.LibraryPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating library path %s: %w", cfg.LibraryPath, err)
	}

	lock, err := utils.NewDBLock(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	set := catalog.NewSet()
	for _, rc := range cfg.Repos {
		cat := catalog.New(rc.ID, rc.FetchInterval)
		builds, err := db.LoadBuilds(ctx, rc.ID)
		if err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, err
		}
		cat.Ingest(builds)
		last, err := db.LastFetched(ctx, rc.ID)
		if err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, err
		}
		cat.MarkFetched(last)
		set.Add(cat)
	}

	lib := library.New(cfg.LibraryPath, db, extract.Archive{}, library.XDGTrash{})

	return &app{
		cfg:  cfg,
		db:   db,
		lock: lock,
		set:  set,
		lib:  lib,
		sync: syncer.New(cfg, set, db),
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
	_ = a.lock.Unlock()
}

// repoConfigFile is the shape of one repos entry in the config file.
type repoConfigFile struct {
	ID              string `mapstructure:"id"`
	Nickname        string `mapstructure:"nickname"`
	Kind            string `mapstructure:"kind"`
	URL             string `mapstructure:"url"`
	IntervalMinutes int    `mapstructure:"fetch_interval_minutes"`
}

// loadConfig converts the viper state into the immutable config value
// the core receives. The core never touches viper.
func loadConfig() (repos.Config, error) {
	libPath := viper.GetString("library.path")
	if libPath == "" {
		var err error
		libPath, err = utils.DefaultLibraryDir()
		if err != nil {
			return repos.Config{}, err
		}
	}

	defaultInterval := viper.GetInt("fetch.interval_minutes")
	if defaultInterval <= 0 {
		defaultInterval = 60
	}

	var raw []repoConfigFile
	if err := viper.UnmarshalKey("repos", &raw); err != nil {
		return repos.Config{}, fmt.Errorf("invalid repos configuration: %w", err)
	}

	cfg := repos.Config{
		LibraryPath:  libPath,
		DatabasePath: filepath.Join(libPath, "blrs.sqlite"),
	}
	for _, r := range raw {
		if r.ID == "" || r.URL == "" {
			return repos.Config{}, fmt.Errorf("repos entries need both an id and a url (got id=%q url=%q)", r.ID, r.URL)
		}
		kind := repos.Kind(r.Kind)
		if kind == "" {
			kind = repos.KindOfficialJSON
		}
		if _, err := repos.ForKind(kind); err != nil {
			return repos.Config{}, err
		}
		interval := time.Duration(r.IntervalMinutes) * time.Minute
		if r.IntervalMinutes <= 0 {
			interval = time.Duration(defaultInterval) * time.Minute
		}
		cfg.Repos = append(cfg.Repos, repos.RepoConfig{
			ID:            r.ID,
			Nickname:      r.Nickname,
			Kind:          kind,
			URL:           r.URL,
			FetchInterval: interval,
		})
	}
	return cfg, nil
}
