package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emr/console/internal/domain"
	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/platform/audit"
	"github.com/emr/console/internal/resource"
)

func listCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Print one page of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookup(args[0])
			if err != nil {
				return err
			}
			page, _ := cmd.Flags().GetInt("page")
			perPage, _ := cmd.Flags().GetInt("per-page")
			search, _ := cmd.Flags().GetString("search")
			filters, _ := cmd.Flags().GetStringArray("filter")

			q := resource.QueryState{Page: page, PerPage: perPage, Search: search}
			for _, f := range filters {
				k, v, ok := strings.Cut(f, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid filter %q, want key=value", f)
				}
				if q.Filters == nil {
					q.Filters = map[string]any{}
				}
				q.Filters[k] = v
			}

			m, closeManager, err := a.open(cmd, res)
			if err != nil {
				return err
			}
			defer closeManager()
			if q.PerPage <= 0 {
				q.PerPage = m.Query().PerPage
			}

			tbl, err := m.Sync(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), tbl)
		},
	}
	cmd.Flags().Int("page", 0, "Page to show, 0 is the first page")
	cmd.Flags().Int("per-page", 0, "Records per page (default from DEFAULT_PER_PAGE)")
	cmd.Flags().String("search", "", "Free-text search")
	cmd.Flags().StringArray("filter", nil, "Filter as key=value, repeatable")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookup(args[0])
			if err != nil {
				return err
			}
			id := args[1]
			meta := res.Describe()

			yes, _ := cmd.Flags().GetBool("yes")
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete %s %s?", strings.ToLower(meta.Name), id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}

			m, closeManager, err := a.open(cmd, res)
			if err != nil {
				return err
			}
			defer closeManager()

			return m.Delete(cmd.Context(), id)
		},
	}
	cmd.Flags().Bool("yes", false, "Delete without asking")
	return cmd
}

func resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the resources the console manages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tNAME\tPATH\tFILTERS")
			for _, r := range domain.Resources() {
				m := r.Describe()
				keys := make([]string, 0, len(m.Filters))
				for _, f := range m.Filters {
					keys = append(keys, f.Key)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Slug, m.Plural, m.Path, strings.Join(keys, ","))
			}
			return tw.Flush()
		},
	}
}

// open loads the configuration and opens a manager for res whose toasts
// go to stderr and whose outcomes are journaled like the web console's.
// The returned func closes the manager and the journal.
func (a *app) open(cmd *cobra.Command, res entity.Resource) (entity.Managed, func(), error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr()).Level(zerolog.WarnLevel)
	gw, err := a.gateway(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	journal, pool, err := a.journal(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}

	stderr := cmd.ErrOrStderr()
	m := res.Open(resource.Config{
		Gateway: gw,
		PerPage: cfg.DefaultPerPage,
		Notifier: resource.NotifierFunc(func(level resource.Level, msg string) {
			fmt.Fprintf(stderr, "%s: %s\n", level, msg)
		}),
		OnOutcome: audit.Hook(audit.Multi(journal, audit.LogRecorder{Logger: logger}), logger),
		Logger:    logger,
	})
	return m, func() {
		m.Close()
		if pool != nil {
			pool.Close()
		}
	}, nil
}

func lookup(slug string) (entity.Resource, error) {
	res, ok := domain.Lookup(slug)
	if !ok {
		return nil, fmt.Errorf("unknown resource %q, one of: %s", slug, strings.Join(domain.Slugs(), ", "))
	}
	return res, nil
}

// writeTable prints a list page as aligned columns with a pager line.
func writeTable(w io.Writer, tbl entity.Table) error {
	if tbl.Empty() {
		_, err := fmt.Fprintf(w, "No %s found.\n", strings.ToLower(tbl.Meta.Plural))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"ID"}
	for _, c := range tbl.Meta.Columns {
		header = append(header, strings.ToUpper(c.Label))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range tbl.Rows {
		fmt.Fprintln(tw, r.ID+"\t"+strings.Join(r.Cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nPage %d of %d, %d total\n", tbl.Page.Page+1, tbl.Page.LastPage+1, tbl.Page.Total)
	return err
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
