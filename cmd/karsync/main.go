package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/fatih/color"
)

const version = "1.0.0"

// TransferFlags describe one transfer on the command line. Empty values
// fall back to the archive and auth sections of the config.
type TransferFlags struct {
	Source         string   `arg:"-s,--source" help:"shared folder URL or folder id"`
	Dest           string   `arg:"-d,--dest" help:"local destination directory"`
	Remote         string   `arg:"-r,--remote" help:"rclone remote holding the Drive token"`
	Sync           bool     `arg:"--sync" help:"make the destination match the source, deleting extra files"`
	DeleteExcluded bool     `arg:"--delete-excluded" help:"with --sync, also delete files outside the selection"`
	TrackRenames   bool     `arg:"--track-renames" help:"with --sync, detect renamed files by hash"`
	Subfolder      bool     `arg:"--subfolder" help:"download into the archive subfolder of --dest"`
	Backup         bool     `arg:"--backup" help:"move replaced and deleted files to a timestamped backup folder"`
	Files          []string `arg:"-f,--file,separate" help:"only transfer this relative path (repeatable)"`
}

type serveCmd struct{}

type remotesCmd struct{}

type authorizeCmd struct{}

type filesCmd struct {
	Source string   `arg:"-s,--source" help:"shared folder URL or folder id"`
	Remote string   `arg:"-r,--remote" help:"rclone remote holding the Drive token"`
	Files  []string `arg:"-f,--file,separate" help:"mark what a transfer of this relative path would include (repeatable)"`
}

type previewCmd struct {
	TransferFlags
}

type downloadCmd struct {
	TransferFlags
	Yes bool `arg:"-y,--yes" help:"confirm pending deletions without asking"`
}

type historyCmd struct {
	Status string `arg:"--status" help:"comma separated statuses to show (running, completed, failed, cancelled)"`
	Kind   string `arg:"--kind" help:"download or preview"`
	Limit  int    `arg:"-n,--limit" default:"20" help:"number of entries"`
}

type stopCmd struct{}

type cliArgs struct {
	Config  string `arg:"-c,--config" help:"path to config.yaml"`
	Verbose bool   `arg:"-v,--verbose" help:"log at the configured level instead of warnings only"`

	Serve     *serveCmd     `arg:"subcommand:serve" help:"run the local control API"`
	Remotes   *remotesCmd   `arg:"subcommand:remotes" help:"list configured Drive remotes"`
	Authorize *authorizeCmd `arg:"subcommand:authorize" help:"sign in to Google Drive and register the remote"`
	Files     *filesCmd     `arg:"subcommand:files" help:"list the files of the shared folder"`
	Preview   *previewCmd   `arg:"subcommand:preview" help:"show what a sync would delete"`
	Download  *downloadCmd  `arg:"subcommand:download" help:"copy or sync the archive to the destination"`
	History   *historyCmd   `arg:"subcommand:history" help:"show past transfers"`
	Stop      *stopCmd      `arg:"subcommand:stop" help:"stop the rclone daemon, cancelling a running download"`
}

func (cliArgs) Description() string {
	return "karsync downloads and syncs the karaoke archive from Google Drive through rclone"
}

func (cliArgs) Version() string {
	return "karsync " + version
}

func main() {
	var args cliArgs
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	if err := run(&args); err != nil {
		slog.Error("command failed", "error", err)
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func run(args *cliArgs) error {
	cfg, err := loadConfig(args.Config)
	if err != nil {
		return err
	}

	setupLogging(cfg.GetLogging(), args.Serve != nil || args.Verbose)
	defer closeLogFile()

	// history and stop never start the daemon, so they run alongside
	// another instance
	switch {
	case args.History != nil:
		return withApp(cfg, false, func(a *app) error { return runHistory(a, args.History) })
	case args.Stop != nil:
		return withApp(cfg, false, runStop)
	}

	return withApp(cfg, true, func(a *app) error {
		switch {
		case args.Serve != nil:
			return runServe(a)
		case args.Remotes != nil:
			return runRemotes(a)
		case args.Authorize != nil:
			return runAuthorize(a)
		case args.Files != nil:
			return runFiles(a, args.Files)
		case args.Preview != nil:
			return runPreview(a, &args.Preview.TransferFlags)
		case args.Download != nil:
			return runDownload(a, args.Download)
		}
		return fmt.Errorf("unknown command")
	})
}
