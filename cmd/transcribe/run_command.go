package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"media-transcript-go/internal/app"
	"media-transcript-go/internal/config"
	"media-transcript-go/internal/export"
	"media-transcript-go/internal/pipeline"
	"media-transcript-go/internal/types"
)

const progressPollInterval = 250 * time.Millisecond

func newRunCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var target string
	var translate bool
	var showParts bool

	cmd := &cobra.Command{
		Use:   "run <file|url>",
		Short: "Transcribe one file or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if target = strings.TrimSpace(target); target != "" {
				if _, err := config.ParseLanguage(target); err != nil {
					return fmt.Errorf("--target: %w", err)
				}
				cfg.Translation.TargetLanguage = strings.ToLower(target)
				translate = true
			}
			format := export.FormatText
			if outPath != "" {
				format, err = export.ParseFormat(strings.TrimPrefix(filepath.Ext(outPath), "."))
				if err != nil {
					return fmt.Errorf("--out: %w", err)
				}
			}

			stderr := cmd.ErrOrStderr()
			a, err := app.Build(cfg, ctx.logger(stderr))
			if err != nil {
				return err
			}
			defer a.Session.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			input := args[0]
			if err := acquire(runCtx, a.Session, input); err != nil {
				return err
			}
			if _, err := transcribeWithProgress(runCtx, a.Session, stderr); err != nil {
				return err
			}
			if translate {
				if _, err := a.Session.RunTranslation(runCtx); err != nil {
					return err
				}
			}

			snap := a.Session.Snapshot()
			fmt.Fprintln(stderr, summaryLine(snap))
			if showParts {
				fmt.Fprintln(stderr, renderParts(snap.Pieces))
			}

			doc := export.Document{
				Identity:       snap.Identity,
				Transcript:     snap.Transcript,
				Pieces:         snap.Pieces,
				Strategy:       snap.Strategy,
				Translation:    snap.Translation,
				TargetLanguage: snap.TargetLanguage,
				CreatedAt:      time.Now(),
			}
			if outPath == "" {
				return export.Write(cmd.OutOrStdout(), doc, format)
			}
			return writeExport(outPath, doc, format, stderr)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the result to a .txt or .xlsx file instead of stdout")
	cmd.Flags().BoolVar(&translate, "translate", false, "Translate the transcript into the configured target language")
	cmd.Flags().StringVar(&target, "target", "", "Target language for translation (implies --translate)")
	cmd.Flags().BoolVar(&showParts, "parts", false, "Print a table of transcript parts")
	return cmd
}

func acquire(ctx context.Context, session *pipeline.Session, input string) error {
	if isURL(input) {
		_, err := session.AcquireFromURL(ctx, input)
		return err
	}
	file, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	_, err = session.AcquireUpload(ctx, filepath.Base(input), file)
	return err
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// transcribeWithProgress runs transcription while relaying progress events
// from the session feed to w.
func transcribeWithProgress(ctx context.Context, session *pipeline.Session, w io.Writer) (string, error) {
	type result struct {
		text string
		err  error
	}
	var seq int64
	if events := session.Events().Since(0); len(events) > 0 {
		seq = events[len(events)-1].Seq
	}

	done := make(chan result, 1)
	go func() {
		text, err := session.RunTranscription(ctx)
		done <- result{text: text, err: err}
	}()
	tty := isTerminal(w)
	relay := func() {
		for _, e := range session.Events().Since(seq) {
			seq = e.Seq
			if e.Type != pipeline.EventTypeProgress {
				continue
			}
			if tty {
				fmt.Fprintf(w, "\rtranscribing %s", e.Message)
			} else {
				fmt.Fprintf(w, "transcribing %s\n", e.Message)
			}
		}
	}

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()
	for {
		select {
		case r := <-done:
			relay()
			if tty {
				fmt.Fprintln(w)
			}
			return r.text, r.err
		case <-ticker.C:
			relay()
		}
	}
}

func summaryLine(snap pipeline.Snapshot) string {
	parts := len(snap.Pieces)
	line := fmt.Sprintf("strategy: %s, parts: %d", snap.Strategy, parts)
	if snap.Artifact != nil {
		line += ", input: " + humanize.IBytes(uint64(snap.Artifact.Size))
	}
	if snap.Translation != "" {
		line += ", translated: " + snap.TargetLanguage
	}
	return line
}

func renderParts(pieces []types.TranscriptPiece) string {
	rows := make([][]string, 0, len(pieces))
	for _, p := range pieces {
		part := "whole"
		if p.Ordinal != types.WholeFile {
			part = strconv.Itoa(p.Ordinal + 1)
		}
		rows = append(rows, []string{part, humanize.Comma(int64(len([]rune(p.Text)))), preview(p.Text, 60)})
	}
	return renderTable([]string{"Part", "Chars", "Text"}, rows, []columnAlignment{alignRight, alignRight, alignLeft})
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

func writeExport(path string, doc export.Document, format export.Format, log io.Writer) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.Write(file, doc, format); err != nil {
		file.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	fmt.Fprintf(log, "wrote %s\n", path)
	return nil
}
