// Package runmeta reads and writes run_meta.json, the small manifest that
// stamps every run directory with enough context (schema version, git SHA,
// config path, simulated stress knobs) to interpret its artifacts later.
package runmeta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"razor/internal/schema"
)

// SimStressProfile carries optional fault-injection knobs recorded in
// run_meta.json. No component in this module reads them to inject faults.
// All zero values mean "no simulated stress".
type SimStressProfile struct {
	ForceChaseFail     bool    `json:"force_chase_fail"`
	LatencySpikeMs     int64   `json:"latency_spike_ms"`
	LatencySpikeEvery  int64   `json:"latency_spike_every"`
	DropBookPct        float64 `json:"drop_book_pct"`
	HTTP429Every       int64   `json:"http_429_every"`
}

// RunMeta is the manifest written once at run start and read by every
// downstream tool that needs to know how a run was produced.
type RunMeta struct {
	RunID              string            `json:"run_id"`
	SchemaVersion      string            `json:"schema_version"`
	GitSHA             string            `json:"git_sha"`
	StartTsUnixMs      int64             `json:"start_ts_unix_ms"`
	ConfigPath         string            `json:"config_path"`
	TradeTsSource      string            `json:"trade_ts_source"`
	NotesEnumVersion   string            `json:"notes_enum_version"`
	TradePollTakerOnly *bool             `json:"trade_poll_taker_only,omitempty"`
	SimStress          SimStressProfile  `json:"sim_stress"`
}

// WriteToDir writes run_meta.json into runDir atomically.
func (m *RunMeta) WriteToDir(runDir string) error {
	return schema.WriteJSONAtomic(filepath.Join(runDir, schema.FileRunMeta), m)
}

// ReadFromDir reads run_meta.json from runDir.
func ReadFromDir(runDir string) (*RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(runDir, schema.FileRunMeta))
	if err != nil {
		return nil, err
	}
	var m RunMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EnvGitSHA resolves a git SHA for stamping run metadata: the GIT_SHA env
// var if set, otherwise a best-effort read of .git/HEAD (following a single
// "ref: " indirection to the loose ref file, then packed-refs), otherwise
// "unknown". It only looks in ./.git, not in parent directories. It never
// shells out to git, keeping the harness dependency-free of the git binary
// at runtime.
func EnvGitSHA() string {
	if sha := os.Getenv("GIT_SHA"); sha != "" {
		return sha
	}
	if sha := readGitHead("."); sha != "" {
		return sha
	}
	return "unknown"
}

func readGitHead(repoRoot string) string {
	headPath := filepath.Join(repoRoot, ".git", "HEAD")
	data, err := os.ReadFile(headPath)
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))
	if !strings.HasPrefix(head, "ref: ") {
		return head // detached HEAD: already a SHA
	}
	ref := strings.TrimPrefix(head, "ref: ")

	if data, err := os.ReadFile(filepath.Join(repoRoot, ".git", ref)); err == nil {
		return strings.TrimSpace(string(data))
	}

	packed, err := os.ReadFile(filepath.Join(repoRoot, ".git", "packed-refs"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(packed), "\n") {
		if strings.HasSuffix(line, " "+ref) {
			fields := strings.Fields(line)
			if len(fields) == 2 {
				return fields[0]
			}
		}
	}
	return ""
}
