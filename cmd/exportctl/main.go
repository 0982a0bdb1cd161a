package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"media-editor/internal/database"
	"media-editor/internal/startup"

	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
	// Rows shown by list when no limit is given
	defaultListLimit = 20
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, startup.DatabaseFile)

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	args := os.Args[2:]
	var cmdErr error
	switch command {
	case "list":
		cmdErr = listExports(ctx, db, os.Stdout, args)
	case "show":
		cmdErr = showExport(ctx, db, os.Stdout, args)
	case "prune":
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		cmdErr = pruneExports(ctx, db, os.Stdin, os.Stdout, interactive, args)
	default:
		// Sanitize command input using allowlist to break taint chain
		sanitized := sanitizeCommand(command)
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitized) //nolint:gosec // G705 - only [a-zA-Z0-9_-] characters pass sanitizeCommand
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Media Editor Export History")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: exportctl <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintf(w, "  list [limit]        - Show recent exports (default %d)\n", defaultListLimit)
	fmt.Fprintln(w, "  show <id>           - Show one export")
	fmt.Fprintln(w, "  prune <age> [-y]    - Delete finished exports older than age (e.g. 72h)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func listExports(ctx context.Context, db *database.Database, w io.Writer, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	limit := defaultListLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}

	records, err := db.ListExports(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list exports: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No exports recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFRAMES\tUPDATED\tOUTPUT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n", r.ID, r.Status, r.Frames, r.Total, r.UpdatedAt.Format(time.RFC3339), r.Output)
	}
	return tw.Flush()
}

func showExport(ctx context.Context, db *database.Database, w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("show takes exactly one export id")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	r, err := db.GetExport(ctx, args[0])
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("export %s not found", sanitizeCommand(args[0]))
	}
	if err != nil {
		return fmt.Errorf("failed to load export: %w", err)
	}

	fmt.Fprintf(w, "ID:       %s\n", r.ID)
	fmt.Fprintf(w, "Status:   %s\n", r.Status)
	fmt.Fprintf(w, "Frames:   %d/%d\n", r.Frames, r.Total)
	fmt.Fprintf(w, "Output:   %s\n", r.Output)
	fmt.Fprintf(w, "Created:  %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:  %s\n", r.UpdatedAt.Format(time.RFC3339))
	if r.Message != "" {
		fmt.Fprintf(w, "Message:  %s\n", r.Message)
	}
	return nil
}

// pruneExports deletes finished exports older than args[0]. Without -y it
// asks for confirmation, which requires an interactive terminal.
func pruneExports(ctx context.Context, db *database.Database, in io.Reader, w io.Writer, interactive bool, args []string) error {
	if len(args) == 0 {
		return errors.New("prune needs an age such as 72h")
	}
	age, err := time.ParseDuration(args[0])
	if err != nil || age < 0 {
		return fmt.Errorf("invalid age %q", args[0])
	}
	confirmed := len(args) > 1 && (args[1] == "-y" || args[1] == "--yes")

	if !confirmed {
		if !interactive {
			return errors.New("refusing to prune without -y when stdin is not a terminal")
		}
		fmt.Fprintf(w, "Delete finished exports older than %s? [y/N] ", age)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := db.DeleteFinishedExports(ctx, time.Now().Add(-age))
	if err != nil {
		return fmt.Errorf("failed to prune exports: %w", err)
	}
	fmt.Fprintf(w, "Deleted %d export(s).\n", n)
	return nil
}
