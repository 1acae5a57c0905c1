// shmkv-admin is the operator-facing cleanup and inspection entry point.
//
// It is a demo CLI, explicitly out of the core's scope (SPEC_FULL.md §1):
// the core never unlinks its own segment (§5), so an explicit operator
// action is the only way to tear one down.
//
// Usage:
//
//	shmkv-admin stats [--segment name] [--mutex] [--snapshot path]
//	shmkv-admin unlink [--segment name] [--mutex]
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/tomarus/shmkv/internal/fs"
	"github.com/tomarus/shmkv/pkg/shmkv"
)

type adminConfig struct {
	Segment  string `json:"segment"`
	Mutex    bool   `json:"mutex"`
	Snapshot string `json:"snapshot"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	flags := pflag.NewFlagSet(cmd, pflag.ExitOnError)

	segment := flags.StringP("segment", "s", shmkv.RWLockSegmentName, "shared-memory segment name")
	useMutex := flags.BoolP("mutex", "m", false, "use the mutex-degradation backend")
	snapshotPath := flags.StringP("snapshot", "o", "", "write a JSON stats snapshot to this path")
	configPath := flags.StringP("config", "c", "", "optional JSON5-with-comments config file")

	if err := flags.Parse(args); err != nil {
		log.Fatalf("shmkv-admin: %v", err)
	}

	if *configPath != "" {
		cfg, err := loadAdminConfig(*configPath)
		if err != nil {
			log.Fatalf("shmkv-admin: %v", err)
		}

		if cfg.Segment != "" {
			*segment = cfg.Segment
		}

		*useMutex = *useMutex || cfg.Mutex

		if cfg.Snapshot != "" && *snapshotPath == "" {
			*snapshotPath = cfg.Snapshot
		}
	}

	backend := shmkv.BackendRWLock
	if *useMutex {
		backend = shmkv.BackendMutex

		if *segment == shmkv.RWLockSegmentName {
			*segment = shmkv.MutexSegmentName
		}
	}

	switch cmd {
	case "stats":
		runStats(*segment, backend, *snapshotPath)
	case "unlink":
		runUnlink(*segment)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: shmkv-admin <stats|unlink> [flags]")
}

// runStats attaches to the segment read-only from the operator's point of
// view (it still takes the table's read lock like any other reader), prints
// the current statistics, and optionally persists them to disk.
//
// Concurrent shmkv-admin invocations are serialized by an advisory lock so
// two operators writing the same snapshot path can't interleave partial
// writes - the table itself tolerates concurrent readers fine, but the
// snapshot file on local disk does not have the segment's own locking.
func runStats(segment string, backend shmkv.Backend, snapshotPath string) {
	real := fs.NewReal()

	if snapshotPath != "" {
		lock, err := real.Lock(snapshotPath)
		if err != nil {
			log.Fatalf("shmkv-admin: acquire snapshot lock: %v", err)
		}

		defer lock.Close()
	}

	tbl, err := shmkv.Open(segment, backend)
	if err != nil {
		log.Fatalf("shmkv-admin: open %s: %v", segment, err)
	}
	defer tbl.Close()

	stats, err := tbl.Stats()
	if err != nil {
		log.Fatalf("shmkv-admin: stats: %v", err)
	}

	log.Printf("attached to %s (%s backend): %s", segment, backend, stats)

	if snapshotPath == "" {
		return
	}

	payload := struct {
		Segment   string      `json:"segment"`
		Backend   string      `json:"backend"`
		Timestamp string      `json:"timestamp"`
		Stats     shmkv.Stats `json:"stats"`
	}{
		Segment:   segment,
		Backend:   backend.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Stats:     stats,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		log.Fatalf("shmkv-admin: marshal snapshot: %v", err)
	}

	if err := real.WriteFileAtomic(snapshotPath, data, 0o644); err != nil {
		log.Fatalf("shmkv-admin: write snapshot: %v", err)
	}

	log.Printf("wrote snapshot to %s", snapshotPath)
}

// runUnlink is the only teardown path for a segment (§5): the core never
// unlinks on its own. An absent segment is not an error.
func runUnlink(segment string) {
	if err := shmkv.Unlink(segment); err != nil {
		log.Fatalf("shmkv-admin: unlink %s: %v", segment, err)
	}

	log.Printf("unlinked %s", segment)
}

func loadAdminConfig(path string) (adminConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return adminConfig{}, fmt.Errorf("read config: %w", err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return adminConfig{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg adminConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return adminConfig{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}
