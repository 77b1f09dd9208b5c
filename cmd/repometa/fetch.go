package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/repometa"
)

func newFetchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Fetch metadata for one or more repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			results := make(map[string]*repometa.Metadata, len(args))
			var failed int
			for _, u := range args {
				m, err := svc.FetchURL(cmd.Context(), u)
				if err != nil {
					a.log.WithError(err).WithField("url", u).Error("fetch failed")
					failed++
				}
				results[u] = m
			}

			if err := a.print(cmd.OutOrStdout(), args, results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d lookups failed", failed, len(args))
			}
			return nil
		},
	}
}

func newBatchCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch [url...]",
		Short: "Fetch metadata for many repositories in paced batches",
		Long: `Fetch metadata for many repositories in paced batches.

URLs come from the arguments and, with --file, one per line from a file
("-" reads stdin). Blank lines and lines starting with # are ignored.
Repositories that cannot be fetched are reported as unavailable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if file != "" {
				fromFile, err := readURLs(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			if len(urls) == 0 {
				return errors.New("no repositories given")
			}

			svc, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			results := svc.FetchURLs(cmd.Context(), urls)
			a.log.WithField("count", len(urls)).Info("batch complete")
			return a.print(cmd.OutOrStdout(), urls, results)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read URLs from file, one per line")
	return cmd
}

func readURLs(path string, stdin io.Reader) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return urls, nil
}

// print writes results in input order, as JSON when --json is set.
func (a *app) print(w io.Writer, order []string, results map[string]*repometa.Metadata) error {
	if a.jsonOut {
		return writeJSON(w, results)
	}
	for _, u := range order {
		writeMetadata(w, u, results[u])
	}
	return nil
}
