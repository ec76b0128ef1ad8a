// Package version сообщает сборочные метаданные бинарника shop.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Переопределяются через -ldflags "-X .../internal/version.release=...".
var (
	release   = ""
	commit    = ""
	buildDate = ""
)

// Build — метаданные сборки, попадающие в логи и healthz.
type Build struct {
	Release string
	Commit  string
	Date    string
}

var resolveOnce = sync.OnceValue(resolve)

// Get возвращает метаданные сборки. Значения из ldflags имеют приоритет,
// недостающие поля добираются из runtime/debug (vcs.revision, vcs.time).
func Get() Build {
	return resolveOnce()
}

// String форматирует метаданные для строки запуска и healthz.
func String() string {
	b := Get()
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Release, b.Commit, b.Date)
}

func resolve() Build {
	b := Build{Release: release, Commit: commit, Date: buildDate}

	if info, ok := debug.ReadBuildInfo(); ok {
		if b.Release == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			b.Release = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = setting.Value
				}
			case "vcs.time":
				if b.Date == "" {
					b.Date = setting.Value
				}
			}
		}
	}

	if b.Release == "" {
		b.Release = "dev"
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}
