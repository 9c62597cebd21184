package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/assetfile/assetfile"
	"github.com/assetfile/assetfile/classdb"
	"github.com/assetfile/assetfile/names"
	"github.com/assetfile/assetfile/resource"
)

const (
	envClassDB  = "ASSETFILE_CLASSDB"
	envLogLevel = "ASSETFILE_LOG_LEVEL"
)

type config struct {
	// ClassDB supplies layouts for files without type trees.
	ClassDB *classdb.Database
	Level   logrus.Level
}

// loadConfig reads the configuration from the environment, after loading a
// .env file if one exists. Non-empty arguments take precedence over the
// environment.
func loadConfig(dbPath, level string) (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}
	if dbPath == "" {
		dbPath = os.Getenv(envClassDB)
	}
	if level == "" {
		level = os.Getenv(envLogLevel)
	}
	if level == "" {
		level = "info"
	}

	c := config{ClassDB: classdb.Default()}
	var err error
	if c.Level, err = logrus.ParseLevel(level); err != nil {
		return config{}, err
	}
	setLogLevel(c.Level)
	if dbPath != "" {
		db, err := classdb.LoadFile(dbPath)
		if err != nil {
			return config{}, err
		}
		c.ClassDB = c.ClassDB.Merge(db)
		logrus.WithField("path", dbPath).Debugf("loaded %d classes", len(db.Classes()))
	}
	return c, nil
}

func setLogLevel(level logrus.Level) {
	logrus.SetLevel(level)
	for _, l := range []*logrus.Logger{assetfile.Logger, names.Logger, resource.Logger} {
		l.SetLevel(level)
		l.SetOutput(os.Stderr)
	}
}

// openWorkspace loads every named file into a new workspace.
func openWorkspace(paths []string) (*assetfile.Workspace, error) {
	ws := assetfile.NewWorkspace(cfg.ClassDB)
	for _, path := range paths {
		_, warn, err := ws.Open(path)
		if warn != nil {
			logrus.WithField("file", path).Warn(warn)
		}
		if err != nil {
			ws.Close()
			return nil, err
		}
	}
	return ws, nil
}
