/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the user scope,
// defaults, and MAR_* environment overrides. Access tokens live in the OS
// keychain, never in the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Tokens are not stored on disk; they live in the OS keychain.
}

type SyncConfig struct {
	PullIntervalMs int `yaml:"pull_interval_ms"`
	PullTimeoutMs  int `yaml:"pull_timeout_ms"`
	LODIntervalMs  int `yaml:"lod_interval_ms"`
}

type InteractionConfig struct {
	ExpandRevertMs int     `yaml:"expand_revert_ms"`
	EditAutoHideMs int     `yaml:"edit_autohide_ms"`
	AnimationMs    int     `yaml:"animation_ms"`
	ShadowDistance float64 `yaml:"shadow_distance"`
	DrawLerp       float64 `yaml:"draw_lerp"`
	EraseRadius    float64 `yaml:"erase_radius"`
}

// RoomConfig maps an image marker to the room it opens.
type RoomConfig struct {
	Marker   string `yaml:"marker"`
	MuseumID string `yaml:"museum_id"`
	RoomID   string `yaml:"room_id"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int               `yaml:"config_version"`
	General       GeneralConfig     `yaml:"general"`
	Backend       BackendConfig     `yaml:"backend"`
	Sync          SyncConfig        `yaml:"sync"`
	Interaction   InteractionConfig `yaml:"interaction"`
	Rooms         []RoomConfig      `yaml:"rooms"`
	Logging       LoggingConfig     `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Sync:          SyncConfig{PullIntervalMs: 30000, PullTimeoutMs: 20000, LODIntervalMs: 1000},
		Interaction: InteractionConfig{
			ExpandRevertMs: 15000,
			EditAutoHideMs: 5000,
			AnimationMs:    300,
			ShadowDistance: 1.0,
			DrawLerp:       0.9,
			EraseRadius:    0.05,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile       = "MAR_CONFIG"
	EnvBackendURL       = "MAR_BACKEND_URL"
	EnvBackendTimeoutMs = "MAR_BACKEND_TIMEOUT_MS"
	EnvTelemetryOptIn   = "MAR_TELEMETRY_OPT_IN"
	EnvPullIntervalMs   = "MAR_PULL_INTERVAL_MS"
	EnvLODIntervalMs    = "MAR_LOD_INTERVAL_MS"
	EnvLogLevel         = "MAR_LOG_LEVEL"
	EnvLogFormat        = "MAR_LOG_FORMAT"
	EnvLogSource        = "MAR_LOG_SOURCE"
	EnvLogFile          = "MAR_LOG_FILE"
)

// ConfigPath returns the per-user config file path. MAR_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MuseumAR")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MuseumAR")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "museumar")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file (if present), applies defaults and environment
// overrides, and returns the curator token from the keychain.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, curatorKey)
	return cfg, tok, nil
}

// Save writes the YAML file and stores a non-empty curator token in the keychain.
func Save(cfg AppConfig, curatorToken string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if curatorToken != "" {
		if err := tokenStore.Set(keyringService, curatorKey, curatorToken); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	// sync and interaction: zero keeps the default
	setInt(&dst.Sync.PullIntervalMs, src.Sync.PullIntervalMs)
	setInt(&dst.Sync.PullTimeoutMs, src.Sync.PullTimeoutMs)
	setInt(&dst.Sync.LODIntervalMs, src.Sync.LODIntervalMs)
	setInt(&dst.Interaction.ExpandRevertMs, src.Interaction.ExpandRevertMs)
	setInt(&dst.Interaction.EditAutoHideMs, src.Interaction.EditAutoHideMs)
	setInt(&dst.Interaction.AnimationMs, src.Interaction.AnimationMs)
	setFloat(&dst.Interaction.ShadowDistance, src.Interaction.ShadowDistance)
	setFloat(&dst.Interaction.DrawLerp, src.Interaction.DrawLerp)
	setFloat(&dst.Interaction.EraseRadius, src.Interaction.EraseRadius)
	if len(src.Rooms) > 0 {
		dst.Rooms = append([]RoomConfig(nil), src.Rooms...)
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	envInt(EnvBackendTimeoutMs, &cfg.Backend.TimeoutMs)
	envInt(EnvPullIntervalMs, &cfg.Sync.PullIntervalMs)
	envInt(EnvLODIntervalMs, &cfg.Sync.LODIntervalMs)
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"backend.base_url":         EnvBackendURL,
		"backend.timeout_ms":       EnvBackendTimeoutMs,
		"general.telemetry_opt_in": EnvTelemetryOptIn,
		"sync.pull_interval_ms":    EnvPullIntervalMs,
		"sync.lod_interval_ms":     EnvLODIntervalMs,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}
	name, ok := names[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Room looks up the room opened by an image marker.
func (c AppConfig) Room(marker string) (RoomConfig, bool) {
	for _, r := range c.Rooms {
		if r.Marker == marker {
			return r, true
		}
	}
	return RoomConfig{}, false
}

func ms(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}

// Timeout is the HTTP client timeout.
func (b BackendConfig) Timeout() time.Duration { return ms(b.TimeoutMs, 15000) }

func (s SyncConfig) PullInterval() time.Duration { return ms(s.PullIntervalMs, 30000) }
func (s SyncConfig) PullTimeout() time.Duration  { return ms(s.PullTimeoutMs, 20000) }

// LODInterval is never shorter than one second.
func (s SyncConfig) LODInterval() time.Duration {
	d := ms(s.LODIntervalMs, 1000)
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (i InteractionConfig) ExpandRevert() time.Duration { return ms(i.ExpandRevertMs, 15000) }
func (i InteractionConfig) EditAutoHide() time.Duration { return ms(i.EditAutoHideMs, 5000) }
func (i InteractionConfig) Animation() time.Duration    { return ms(i.AnimationMs, 300) }

// --- Keychain ---

const (
	keyringService = "MuseumAR"
	curatorKey     = "curator_token"
)

// TokenStore abstracts the OS keychain so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// SetTokenStore swaps the keychain and returns a func restoring the previous one.
func SetTokenStore(ts TokenStore) (restore func()) {
	prev := tokenStore
	tokenStore = ts
	return func() { tokenStore = prev }
}

func communityKey(museumID, roomID string) string {
	return "community:" + museumID + "/" + roomID
}

// CommunityToken returns the stored access token for a room. A missing entry
// is not an error and yields "".
func CommunityToken(museumID, roomID string) (string, error) {
	tok, err := tokenStore.Get(keyringService, communityKey(museumID, roomID))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return tok, err
}

// SaveCommunityToken stores the access token of a room's community session.
func SaveCommunityToken(museumID, roomID, token string) error {
	return tokenStore.Set(keyringService, communityKey(museumID, roomID), token)
}

// ForgetCommunityToken removes a stored token; a missing entry is fine.
func ForgetCommunityToken(museumID, roomID string) error {
	err := tokenStore.Delete(keyringService, communityKey(museumID, roomID))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
