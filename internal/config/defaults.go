package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultManifest is the app shell precached on install
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/style.css",
	"/script.js",
	"/pwa.js",
	"/manifest.json",
	"/favicon.ico",
	"/favicon.svg",
	"/icon/favicon-96x96.png",
	"/icon/web-app-manifest-192x192.png",
	"/icon/web-app-manifest-512x512.png",
	"/icon/apple-touch-icon.png",
	"/screenshots/Mobiless.png",
	"/screenshots/Pcss.png",
	"/offline.html",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			PollInterval: time.Minute,
		},
		Offline: OfflineConfig{
			Addr:        "127.0.0.1:8787",
			Origin:      "http://127.0.0.1:8080",
			Version:     "shiush-todo-v3",
			Strategy:    "network-first",
			OfflinePage: "/offline.html",
			ShellPage:   "/index.html",
			SkipWaiting: true,
			Manifest:    append([]string(nil), DefaultManifest...),
		},
	}
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# shiush configuration\n%s", data); err != nil {
		return err
	}
	return f.Close()
}
