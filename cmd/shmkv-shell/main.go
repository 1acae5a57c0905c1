// shmkv-shell is an interactive REPL for poking at a shmkv segment.
//
// It is a demo CLI, explicitly out of the core's scope (SPEC_FULL.md §1):
// it exercises the table through its stable public surface and contains no
// essential design of its own.
//
// Usage:
//
//	shmkv-shell [--segment name] [--mutex] [--config path]
//
// Commands (in REPL):
//
//	add <key> <value>       Insert a new key
//	update <key> <value>    Overwrite an existing key
//	upsert <key> <value>    Insert or overwrite
//	get <key>                Retrieve a value
//	remove <key>             Tombstone a key
//	contains <key>           Report presence
//	count                    Live entry count
//	loadfactor               live/Capacity
//	stats                    Full statistics report
//	clear                    Reset the table
//	help                     Show this help
//	exit / quit / q          Exit
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/tomarus/shmkv/pkg/shmkv"
)

// shellConfig holds defaults optionally loaded from a JSON-with-comments
// config file, overridable by flags.
type shellConfig struct {
	Segment string `json:"segment"`
	Mutex   bool   `json:"mutex"`
}

func main() {
	var (
		segment    string
		useMutex   bool
		configPath string
	)

	pflag.StringVarP(&segment, "segment", "s", shmkv.RWLockSegmentName, "shared-memory segment name")
	pflag.BoolVarP(&useMutex, "mutex", "m", false, "use the mutex-degradation backend instead of the rwlock backend")
	pflag.StringVarP(&configPath, "config", "c", "", "optional JSON5-with-comments config file")
	pflag.Parse()

	if configPath != "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shmkv-shell: %v\n", err)
			os.Exit(1)
		}

		if cfg.Segment != "" {
			segment = cfg.Segment
		}

		useMutex = useMutex || cfg.Mutex
	}

	backend := shmkv.BackendRWLock
	if useMutex {
		backend = shmkv.BackendMutex

		if segment == shmkv.RWLockSegmentName {
			segment = shmkv.MutexSegmentName
		}
	}

	tbl, err := shmkv.Open(segment, backend)
	if err != nil {
		// Segment bootstrap failure is fatal per the error handling design:
		// the table's invariants cannot hold without a mapped segment.
		fmt.Fprintf(os.Stderr, "shmkv-shell: open %s: %v\n", segment, err)
		os.Exit(1)
	}
	defer tbl.Close()

	runREPL(tbl, segment, backend)
}

func loadConfig(path string) (shellConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return shellConfig{}, fmt.Errorf("read config: %w", err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return shellConfig{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg shellConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return shellConfig{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func runREPL(tbl *shmkv.Table, segment string, backend shmkv.Backend) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	fmt.Printf("shmkv-shell: attached to %s (%s backend)\n", segment, backend)
	fmt.Println("type 'help' for commands, 'exit' to quit")

	for {
		input, err := line.Prompt("shmkv> ")
		if err != nil {
			break
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}

		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "exit", "quit", "q":
			return
		case "help":
			printHelp()
		default:
			dispatch(tbl, cmd, args)
		}
	}
}

func dispatch(tbl *shmkv.Table, cmd string, args []string) {
	switch cmd {
	case "add":
		mutateWithValue(tbl.Add, args)
	case "update":
		mutateWithValue(tbl.Update, args)
	case "upsert":
		mutateWithValue(tbl.Upsert, args)
	case "get":
		key, err := parseKey(args)
		if err != nil {
			fmt.Println(err)

			return
		}

		v, err := tbl.Get(key)
		if err != nil {
			fmt.Println(err)

			return
		}

		fmt.Printf("%q\n", v)
	case "remove":
		key, err := parseKey(args)
		if err != nil {
			fmt.Println(err)

			return
		}

		if err := tbl.Remove(key); err != nil {
			fmt.Println(err)
		}
	case "contains":
		key, err := parseKey(args)
		if err != nil {
			fmt.Println(err)

			return
		}

		ok, err := tbl.Contains(key)
		if err != nil {
			fmt.Println(err)

			return
		}

		fmt.Println(ok)
	case "count":
		n, err := tbl.Count()
		if err != nil {
			fmt.Println(err)

			return
		}

		fmt.Println(n)
	case "loadfactor":
		lf, err := tbl.LoadFactor()
		if err != nil {
			fmt.Println(err)

			return
		}

		fmt.Printf("%.4f\n", lf)
	case "stats":
		stats, err := tbl.Stats()
		if err != nil {
			fmt.Println(err)

			return
		}

		fmt.Println(stats)
	case "clear":
		if err := tbl.Clear(); err != nil {
			fmt.Println(err)
		}
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
}

func mutateWithValue(op func(int32, []byte) error, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: <op> <key> [value]")

		return
	}

	key, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		fmt.Printf("invalid key %q: %v\n", args[0], err)

		return
	}

	value := ""
	if len(args) > 1 {
		value = strings.Join(args[1:], " ")
	}

	if err := op(int32(key), []byte(value)); err != nil {
		fmt.Println(err)
	}
}

func parseKey(args []string) (int32, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("usage: <cmd> <key>")
	}

	key, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", args[0], err)
	}

	return int32(key), nil
}

func printHelp() {
	fmt.Print(`commands:
  add <key> <value>       insert a new key
  update <key> <value>    overwrite an existing key
  upsert <key> <value>    insert or overwrite
  get <key>               retrieve a value
  remove <key>            tombstone a key
  contains <key>          report presence
  count                   live entry count
  loadfactor              live/Capacity
  stats                   full statistics report
  clear                   reset the table
  help                    show this help
  exit / quit / q         exit
`)
}
