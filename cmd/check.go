package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dashboard-api/internal/config"
	"github.com/sells-group/dashboard-api/internal/llm"
	"github.com/sells-group/dashboard-api/internal/store"
)

const checkTimeout = 5 * time.Second

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the chat provider and database configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "store:    FAIL %v\n", err)
		} else {
			defer st.Close() //nolint:errcheck
		}

		return runChecks(ctx, cmd.OutOrStdout(), cfg, st)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runChecks prints one line per dependency and fails if any is unusable.
// A nil store means it could not be opened and was already reported.
func runChecks(ctx context.Context, out io.Writer, c *config.Config, st store.Store) error {
	failed := st == nil

	if st != nil {
		if err := st.Ping(ctx); err != nil {
			fmt.Fprintf(out, "store:    FAIL %v\n", err)
			failed = true
		} else {
			fmt.Fprintf(out, "store:    ok (%s)\n", c.Store.Driver)
		}
	}

	if ok, msg := llm.Validate(llm.ProviderConfigFrom(c)); ok {
		fmt.Fprintf(out, "provider: ok (%s)\n", msg)
	} else {
		fmt.Fprintf(out, "provider: FAIL %s\n", msg)
		failed = true
	}

	if c.Notion.Token == "" {
		fmt.Fprintln(out, "notion:   not configured")
	} else {
		fmt.Fprintln(out, "notion:   configured")
	}
	switch {
	case c.Firecrawl.Key != "" && c.Jina.Key != "":
		fmt.Fprintln(out, "web:      firecrawl + jina reader")
	case c.Firecrawl.Key != "":
		fmt.Fprintln(out, "web:      firecrawl")
	case c.Jina.Key != "":
		fmt.Fprintln(out, "web:      jina reader only")
	default:
		fmt.Fprintln(out, "web:      not configured (url enhancement disabled)")
	}

	if failed {
		return eris.New("check failed")
	}
	return nil
}
