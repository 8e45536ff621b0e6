// Command bulkget downloads uploaded music files from a music-manager
// server, one at a time, saving them under their canonical names.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/glanburn/music-manager/internal/client"
	"github.com/glanburn/music-manager/internal/download"
	"github.com/glanburn/music-manager/internal/logging"
	"github.com/glanburn/music-manager/internal/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("bulkget", pflag.ContinueOnError)
	server := flags.String("server", "http://localhost:8080", "music-manager server URL")
	email := flags.String("email", os.Getenv("MUSICMAN_EMAIL"), "login email (or MUSICMAN_EMAIL)")
	password := flags.String("password", os.Getenv("MUSICMAN_PASSWORD"), "login password (or MUSICMAN_PASSWORD)")
	competition := flags.String("competition", "", "competition id to download")
	grade := flags.String("grade", "", "restrict to one grade id")
	status := flags.String("status", model.StatusReady, "artifact status filter")
	out := flags.String("out", "downloads", "output directory")
	ids := flags.StringSlice("ids", nil, "explicit artifact ids (default: all matching)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("email and password are required")
	}

	log := logging.Setup("local")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	c := client.New(*server)
	if err := c.Login(ctx, *email, *password); err != nil {
		return err
	}

	artifacts, err := c.ListArtifacts(ctx, model.ArtifactFilter{
		CompetitionID: *competition,
		GradeID:       *grade,
		Status:        *status,
	})
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		fmt.Println("nothing to download")
		return nil
	}

	saver, err := client.NewFileSaver(*out)
	if err != nil {
		return err
	}

	o := download.New(c, saver, log)
	o.SetCandidates(artifacts)
	if len(*ids) > 0 {
		for _, id := range *ids {
			o.ToggleSelection(id)
		}
	} else {
		all := make([]string, len(artifacts))
		for i, a := range artifacts {
			all[i] = a.ID
		}
		o.SelectAll(all)
	}

	o.OnProgress = func(cursor, total, percent int) {
		fmt.Printf("\r%s %d/%d (%d%%)", color.CyanString("downloading"), cursor, total, percent)
	}

	summary, err := o.Start(ctx)
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("%s %d downloaded, %d failed (of %d)\n",
		color.GreenString("done:"), summary.Succeeded, summary.Failed, summary.Total)
	slog.Debug("batch summary", "total", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return nil
}
