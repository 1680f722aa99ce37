package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/showtimes/internal/config"
	"github.com/JakeFAU/showtimes/internal/showtime"
)

// newCrawlCmd creates the 'crawl' subcommand, which answers one query and
// prints the JSON result to stdout.
func newCrawlCmd() *cobra.Command {
	var (
		near     string
		date     string
		military bool
		file     string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetches showtimes for one location and prints them",
		Long: `Runs a single showtimes query through the same cache and crawler the
server uses. --file reads a saved listing page instead of the live site.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var datePtr *string
			if cmd.Flags().Changed("date") {
				datePtr = &date
			}
			militaryStr := fmt.Sprint(military)
			q, err := showtime.ParseQuery(&near, datePtr, &militaryStr)
			if err != nil {
				return err
			}

			var override func(*config.Config)
			if file != "" {
				abs, err := filepath.Abs(file)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", file, err)
				}
				override = func(cfg *config.Config) {
					cfg.Crawler.BaseURL = "file://" + filepath.ToSlash(abs)
					cfg.Crawler.AllowFiles = true
					cfg.Crawler.RequestsPerSecond = 0
				}
			}
			a, err := startApp(cmd, override)
			if err != nil {
				return err
			}

			defer a.Close()

			body, err := a.Service().Showtimes(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("crawl %q: %w", near, err)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, body, "", "  "); err != nil {
				return fmt.Errorf("format result: %w", err)
			}
			out.WriteByte('\n')
			if _, err := cmd.OutOrStdout().Write(out.Bytes()); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&near, "near", "", "location to search near (required)")
	cmd.Flags().StringVar(&date, "date", "0", "days from today")
	cmd.Flags().BoolVar(&military, "military", false, "print 24-hour times")
	cmd.Flags().StringVar(&file, "file", "", "saved listing page to parse instead of fetching")
	_ = cmd.MarkFlagRequired("near")
	return cmd
}
