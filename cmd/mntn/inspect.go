package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/attenuate/mntn/analyser"
	"github.com/attenuate/mntn/forensics"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <dump.mntn>",
	Short: "Interactively explore a saved forensic dump",
	Long: `Start an interactive session over a forensic dump's captured memory.

Commands:
  summary                  print the dump's summary line
  stats                    print memory utilization statistics
  find <hex-bytes>         list offsets where the byte pattern occurs
  strings                  list printable ASCII runs (min 4, max 256 bytes)
  read-i32 <offset>        read a little-endian i32 at offset
  read-i64 <offset>        read a little-endian i64 at offset
  hexdump <offset> <len>   render a canonical hex dump
  exit                     leave the session

Type 'exit' or press Ctrl+D to quit.`,
	Args: cobra.ExactArgs(1),
	Run:  runInspect,
}

func init() {
	inspectCmd.Flags().String("history", "", "History file path (default: ~/.mntn_history)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		fail("reading dump: %v", err)
	}
	dump, err := forensics.Decode(data)
	if err != nil {
		fail("decoding dump: %v", err)
	}
	a := analyser.New(dump)

	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".mntn_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "mntn> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fail("initializing readline: %v", err)
	}
	defer rl.Close()

	fmt.Fprintln(os.Stderr, forensics.Summary(dump))

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		if err := runInspectCommand(a, dump, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func runInspectCommand(a *analyser.Analyser, dump *forensics.Dump, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "summary":
		fmt.Println(forensics.Summary(dump))
	case "stats":
		s := a.Stats()
		fmt.Printf("size_bytes=%d size_pages=%d zero_bytes=%d non_zero_bytes=%d utilization=%.4f\n",
			s.SizeBytes, s.SizePages, s.ZeroBytes, s.NonZeroBytes, s.Utilization)
	case "find":
		if len(fields) != 2 {
			return fmt.Errorf("usage: find <hex-bytes>")
		}
		needle, err := parseHexBytes(fields[1])
		if err != nil {
			return err
		}
		offsets := a.FindPattern(needle)
		fmt.Printf("%d match(es): %v\n", len(offsets), offsets)
	case "strings":
		for _, s := range a.ExtractStrings(analyser.DefaultStringOptions()) {
			fmt.Printf("%08x  %s\n", s.Offset, s.Value)
		}
	case "read-i32":
		offset, err := parseOffset(fields)
		if err != nil {
			return err
		}
		v, err := a.ReadI32(offset)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "read-i64":
		offset, err := parseOffset(fields)
		if err != nil {
			return err
		}
		v, err := a.ReadI64(offset)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "hexdump":
		if len(fields) != 3 {
			return fmt.Errorf("usage: hexdump <offset> <len>")
		}
		offset, err := strconv.Atoi(fields[1])
		if err != nil {
			return err
		}
		length, err := strconv.Atoi(fields[2])
		if err != nil {
			return err
		}
		out, err := a.HexDump(offset, length)
		if err != nil {
			return err
		}
		fmt.Print(out)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func parseOffset(fields []string) (int, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("usage: %s <offset>", fields[0])
	}
	return strconv.Atoi(fields[1])
}

func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q", s[i*2:i*2+2])
		}
		out[i] = byte(v)
	}
	return out, nil
}
