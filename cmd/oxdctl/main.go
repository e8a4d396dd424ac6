package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/whizsid/openxd-sub000/pkg/oxd"
	"github.com/whizsid/openxd-sub000/pkg/oxd/archive"
	"github.com/whizsid/openxd-sub000/pkg/oxd/config"
	"github.com/whizsid/openxd-sub000/pkg/oxd/repo/memory"
	memorystorage "github.com/whizsid/openxd-sub000/pkg/oxd/storage/memory"
)

const usage = `OXD archive CLI

Imports and exports OXD project archives against the configured stores.

USAGE:
  oxdctl <command> [options]

COMMANDS:
  import <archive>                      Import an archive as a new project
  export <document-id> <archive>        Export a stored document
  export-project <project-id> <archive> Export the document of a project
  list --owner-id=<uuid>                List projects of an owner
  inspect <archive>                     List the entries of an archive
  repack <in> <out>                     Re-encode an archive with another codec

ENVIRONMENT VARIABLES:
  DATABASE_URL      "memory" or a PostgreSQL connection string
  STORAGE_URL       memory://, file:///path or s3://bucket?region=...
  ARCHIVE_CODEC     xz (default), zstd, gzip, lz4
  KEY_LAYOUT        flat (default), git-like, hashed

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

OPTIONS:
  --name=<name>          Project name (import)
  --owner-id=<uuid>      Owner of the project (import, list)
  --codec=<codec>        Archive codec, overrides ARCHIVE_CODEC (import, export, inspect, repack input)
  --to=<codec>           Output codec (repack)
  --json                 Output as JSON
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		os.Exit(0)
	}

	positional, flags := parseArgs(os.Args[2:])
	ctx := context.Background()

	if err := run(ctx, command, positional, flags, os.Stdout); err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func run(ctx context.Context, command string, args []string, flags map[string]string, out io.Writer) error {
	switch command {
	case "inspect":
		if len(args) != 1 {
			return errors.New("usage: oxdctl inspect <archive>")
		}
		codec, err := codecFlag(flags, "codec")
		if err != nil {
			return err
		}
		return handleInspect(args[0], codec, flags["json"] == "true", out)
	case "repack":
		if len(args) != 2 {
			return errors.New("usage: oxdctl repack <in> <out> --to=<codec>")
		}
		from, err := codecFlag(flags, "codec")
		if err != nil {
			return err
		}
		to, err := codecFlag(flags, "to")
		if err != nil {
			return err
		}
		return handleRepack(ctx, args[0], args[1], from, to, out)
	}

	svc, err := createService(ctx, flags)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	switch command {
	case "import":
		if len(args) != 1 {
			return errors.New("usage: oxdctl import <archive>")
		}
		return handleImport(ctx, svc, args[0], flags, out)
	case "export", "export-project":
		if len(args) != 2 {
			return fmt.Errorf("usage: oxdctl %s <id> <archive>", command)
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}
		return handleExport(ctx, svc, id, args[1], command == "export-project", out)
	case "list":
		return handleList(ctx, svc, flags, out)
	default:
		return fmt.Errorf("unknown command: %s\n\n%s", command, usage)
	}
}

func createService(ctx context.Context, flags map[string]string) (oxd.Service, error) {
	opts := []config.Option{config.WithEnv(""), config.WithEventLogging(false)}
	if codec := flags["codec"]; codec != "" {
		opts = append(opts, config.WithArchiveCodec(codec))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseType == "memory" {
		slog.Warn("DATABASE_URL not set, imported projects will not outlive this process")
	}
	return cfg.BuildService(ctx, slog.Default())
}

func codecFlag(flags map[string]string, key string) (archive.Codec, error) {
	name := flags[key]
	if name == "" {
		name = os.Getenv("ARCHIVE_CODEC")
	}
	if name == "" {
		return archive.DefaultCodec, nil
	}
	return archive.CodecByName(name)
}

func parseArgs(args []string) ([]string, map[string]string) {
	var positional []string
	flags := map[string]string{}
	for _, arg := range args {
		key, value := parseFlag(arg)
		if key == "" {
			positional = append(positional, arg)
			continue
		}
		flags[key] = value
	}
	return positional, flags
}

func parseFlag(arg string) (string, string) {
	if len(arg) > 2 && arg[:2] == "--" {
		arg = arg[2:]
		if key, value, ok := strings.Cut(arg, "="); ok {
			return key, value
		}
		return arg, "true"
	}
	return "", ""
}

func handleImport(ctx context.Context, svc oxd.Service, path string, flags map[string]string, out io.Writer) error {
	req := oxd.ImportRequest{ProjectName: flags["name"]}
	if raw := flags["owner-id"]; raw != "" {
		owner, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid owner id %q: %w", raw, err)
		}
		req.OwnerID = owner
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := svc.Import(ctx, f, req)
	if err != nil {
		return err
	}

	if flags["json"] == "true" {
		return writeJSON(out, result.Project)
	}

	fmt.Fprintf(out, "Project:  %s (%s)\n", result.Project.ID, result.Project.Name)
	fmt.Fprintf(out, "Document: %s\n", result.Document.ID)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ENTRY\tKEY\n")
	for entry, key := range result.Assets {
		fmt.Fprintf(w, "%s\t%s\n", entry, key)
	}
	return w.Flush()
}

func handleExport(ctx context.Context, svc oxd.Service, id uuid.UUID, path string, project bool, out io.Writer) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if project {
		err = svc.ExportProject(ctx, f, id)
	} else {
		err = svc.Export(ctx, f, id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %s to %s\n", id, path)
	return nil
}

func handleList(ctx context.Context, svc oxd.Service, flags map[string]string, out io.Writer) error {
	owner, err := uuid.Parse(flags["owner-id"])
	if err != nil {
		return fmt.Errorf("--owner-id is required: %w", err)
	}
	projects, err := svc.ListProjects(ctx, owner)
	if err != nil {
		return err
	}

	if flags["json"] == "true" {
		return writeJSON(out, projects)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tSLUG\tDOCUMENT\tCREATED\n")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Slug, p.DocumentID, p.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	fmt.Fprintf(out, "\nTotal: %d\n", len(projects))
	return nil
}

type entryInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Kind string `json:"kind"`
}

func handleInspect(path string, codec archive.Codec, useJSON bool, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ar, err := archive.NewReader(f, codec)
	if err != nil {
		return err
	}
	defer ar.Close()

	var entries []entryInfo
	for entry, err := range ar.Entries() {
		if err != nil {
			return err
		}
		kind := "document"
		if !strings.EqualFold(entry.Ext(), oxd.DocumentExtension) {
			kind = "unsupported"
			if media, ok := oxd.Classify(entry.Ext()); ok {
				kind = media.MimeType()
			}
		}
		entries = append(entries, entryInfo{Path: entry.Path, Size: entry.Size, Kind: kind})
	}

	if useJSON {
		return writeJSON(out, entries)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PATH\tSIZE\tKIND\n")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", e.Path, e.Size, e.Kind)
	}
	return w.Flush()
}

// handleRepack imports an archive into throwaway memory stores and exports it
// again with another codec.
func handleRepack(ctx context.Context, inPath, outPath string, from, to archive.Codec, out io.Writer) error {
	repo := memory.New()
	store := oxd.NewContentStore("memory", memorystorage.New())

	reader, err := oxd.New(oxd.WithRepository(repo), oxd.WithContentStore(store), oxd.WithCodec(from))
	if err != nil {
		return err
	}
	writer, err := oxd.New(oxd.WithRepository(repo), oxd.WithContentStore(store), oxd.WithCodec(to))
	if err != nil {
		return err
	}

	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	result, err := reader.Import(ctx, in, oxd.ImportRequest{})
	if err != nil {
		return err
	}

	if err := handleExport(ctx, writer, result.Document.ID, outPath, false, io.Discard); err != nil {
		return err
	}
	fmt.Fprintf(out, "Repacked %s (%s) to %s (%s), %d assets\n", inPath, from.Name(), outPath, to.Name(), len(result.Assets))
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
