package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"karsync/internal/models"

	"github.com/fatih/color"
)

// maxListedDeletions caps the deletion list printed before a confirmation
const maxListedDeletions = 20

func runRemotes(a *app) error {
	remotes, err := a.transfers.ListRemotes(context.Background())
	if err != nil {
		return err
	}

	if len(remotes) == 0 {
		color.Yellow("⚠ No Drive remotes configured. Run `karsync authorize` first.")
		return nil
	}

	profile := a.cfg.GetAuth().ProfileName
	for _, name := range remotes {
		if name == profile {
			color.Green("* %s", name)
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func runAuthorize(a *app) error {
	stop := onInterrupt(func() {
		if a.auth.Cancel() {
			color.Yellow("\nCancelling authorization...")
		}
	})
	defer stop()

	result, err := a.auth.Authorize(context.Background(), func(url string) {
		color.Cyan("Open this link in your browser to sign in:")
		fmt.Println(url)
	})
	if result != nil && result.State == models.AuthStateCancelled {
		color.Yellow("⚠ %s", result.Message)
		return nil
	}
	if err != nil {
		return err
	}

	color.Green("✓ Authorized and registered remote %s", result.Profile)
	return nil
}

func runFiles(a *app, cmd *filesCmd) error {
	source := firstNonEmpty(cmd.Source, a.cfg.GetArchive().DefaultSource)
	remote := firstNonEmpty(cmd.Remote, a.cfg.GetAuth().ProfileName)
	if source == "" {
		return fmt.Errorf("no source given and archive.default_source is not set")
	}

	selection := selectionFromFlags(cmd.Files)
	files, err := a.transfers.ListFiles(context.Background(), source, remote, selection)
	if err != nil {
		return err
	}

	dirs := color.New(color.FgBlue, color.Bold)
	marked := color.New(color.FgGreen)
	selected := 0
	for _, f := range files {
		prefix := ""
		if selection.Restricted() {
			prefix = "  "
			if f.Selected {
				prefix = marked.Sprint("* ")
			}
		}
		if f.Selected && !f.IsDir {
			selected++
		}

		if f.IsDir {
			fmt.Print(prefix)
			dirs.Printf("%s/\n", f.Path)
			continue
		}
		fmt.Printf("%s%s  %s\n", prefix, f.Path, humanBytes(f.Size))
	}

	if selection.Restricted() {
		fmt.Printf("\n%d file(s) selected\n", selected)
	}
	return nil
}

func runPreview(a *app, flags *TransferFlags) error {
	result, err := a.transfers.Preview(context.Background(), transferParams(a, flags))
	if err != nil {
		return err
	}

	if result.Stopped {
		color.Yellow("⚠ %s", result.Summary)
		return nil
	}

	if !result.WouldDelete {
		color.Green("✓ No files would be deleted")
	} else {
		color.Yellow("A sync would delete %d file(s):", len(result.DeletedFiles))
		for _, path := range result.DeletedFiles {
			fmt.Printf("  %s\n", path)
		}
	}
	fmt.Println(result.Summary)
	return nil
}

func runDownload(a *app, cmd *downloadCmd) error {
	stop := onInterrupt(func() {
		color.Yellow("\nStopping rclone...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.transfers.StopDaemon(ctx); err != nil {
			color.Red("✗ %v", err)
		}
	})
	defer stop()

	confirm := func(preview *models.DryRunResult) bool {
		return cmd.Yes || confirmDeletions(preview)
	}

	done := make(chan struct{})
	go reportProgress(a, done)

	result, err := a.transfers.Download(context.Background(), transferParams(a, &cmd.TransferFlags), confirm)
	close(done)
	if err != nil {
		return err
	}

	record := result.Transfer
	switch {
	case result.Declined:
		color.Yellow("⚠ %s", record.Message)
	case record.Status == models.TransferStatusCancelled:
		color.Yellow("⚠ %s", record.Message)
	default:
		color.Green("✓ Download completed")
		fmt.Printf("Checks: %d, Transfers: %d, Deletes: %d, Errors: %d\n",
			record.Stats.Checks, record.Stats.Transfers, record.Stats.Deletes, record.Stats.Errors)
		if record.BackupPath != "" {
			fmt.Printf("Backup: %s\n", record.BackupPath)
		}
	}
	return nil
}

func runHistory(a *app, cmd *historyCmd) error {
	query := models.TransferQuery{
		Kind:  models.TransferKind(cmd.Kind),
		Limit: cmd.Limit,
	}
	for _, s := range strings.Split(cmd.Status, ",") {
		if s = strings.TrimSpace(s); s != "" {
			query.Status = append(query.Status, models.TransferStatus(s))
		}
	}

	records, err := a.transfers.GetTransfers(query)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No transfers recorded")
		return nil
	}

	for _, r := range records {
		status := statusColor(r.Status).Sprintf("%-9s", r.Status)
		fmt.Printf("%5d  %s  %-8s %-4s %s  %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.Mode, status, r.Destination)
		switch {
		case r.ErrorMessage != "":
			fmt.Printf("       %s\n", r.ErrorMessage)
		case r.Message != "":
			fmt.Printf("       %s\n", r.Message)
		}
	}
	return nil
}

func runStop(a *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !a.daemon.IsRunning(ctx) {
		fmt.Println("rclone daemon is not running")
		return nil
	}
	if err := a.transfers.StopDaemon(ctx); err != nil {
		return err
	}
	color.Green("✓ rclone daemon stopped")
	return nil
}

// transferParams fills unset flags from the config
func transferParams(a *app, f *TransferFlags) models.TransferParams {
	archive := a.cfg.GetArchive()
	return models.TransferParams{
		Source:          firstNonEmpty(f.Source, archive.DefaultSource),
		Destination:     firstNonEmpty(f.Dest, archive.DefaultDestination),
		Remote:          firstNonEmpty(f.Remote, a.cfg.GetAuth().ProfileName),
		SyncMode:        f.Sync,
		DeleteExcluded:  f.DeleteExcluded,
		TrackRenames:    f.TrackRenames,
		CreateSubfolder: f.Subfolder,
		CreateBackup:    f.Backup,
		SelectedFiles:   selectionFromFlags(f.Files),
	}
}

func selectionFromFlags(files []string) models.Selection {
	if len(files) == 0 {
		return models.SelectAll()
	}
	return models.SelectOnly(files)
}

func confirmDeletions(preview *models.DryRunResult) bool {
	color.Yellow("This sync will delete %d file(s) at the destination:", len(preview.DeletedFiles))
	for i, path := range preview.DeletedFiles {
		if i == maxListedDeletions {
			fmt.Printf("  ... and %d more\n", len(preview.DeletedFiles)-maxListedDeletions)
			break
		}
		fmt.Printf("  %s\n", path)
	}
	if len(preview.DeletedFiles) == 0 {
		fmt.Println(preview.Summary)
	}

	fmt.Print("Proceed? [y/N] ")
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		fmt.Println()
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// reportProgress prints live stats until done is closed
func reportProgress(a *app, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := a.transfers.LiveStats()
			if stats == nil {
				continue
			}
			line := fmt.Sprintf("%s / %s  %s/s  %d transferred",
				humanBytes(stats.Bytes), humanBytes(stats.TotalBytes), humanBytes(int64(stats.Speed)), stats.Transfers)
			if stats.ETA != nil {
				line += fmt.Sprintf("  ETA %s", time.Duration(*stats.ETA)*time.Second)
			}
			color.Cyan("%s", line)
		}
	}
}

// onInterrupt runs fn on every SIGINT or SIGTERM until the returned stop is called
func onInterrupt(fn func()) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigChan:
				fn()
			case <-quit:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(quit)
	}
}

func statusColor(status models.TransferStatus) *color.Color {
	switch status {
	case models.TransferStatusCompleted:
		return color.New(color.FgGreen)
	case models.TransferStatusFailed:
		return color.New(color.FgRed)
	case models.TransferStatusCancelled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
