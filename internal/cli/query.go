package cli

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/atlekbai/aicfo/internal/query"
	"github.com/atlekbai/aicfo/internal/schema"
	"github.com/atlekbai/aicfo/internal/viewtable"
)

type transformOptions struct {
	table    string
	company  string
	user     string
	intt     string
	today    string
	timezone string
	tables   string
}

// NewTransformCommand creates the transform command.
func NewTransformCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &transformOptions{}
	cmd := &cobra.Command{
		Use:   "transform <sql|->",
		Short: "Rewrite logical tables into tenant view-function calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := input(cmd, args[0])
			if err != nil {
				return err
			}
			return runTransform(cmd, rootOpts, opts, sql)
		},
	}
	cmd.Flags().StringVarP(&opts.table, "table", "t", "", "logical table key (amt, trsc, stock)")
	cmd.Flags().StringVar(&opts.company, "company", "", "company id")
	cmd.Flags().StringVar(&opts.user, "user", "", "user id")
	cmd.Flags().StringVar(&opts.intt, "intt", "", "use_intt_id")
	cmd.Flags().StringVar(&opts.today, "today", "", "fixed current date, YYYYMMDD")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "Asia/Seoul", "time zone for the current date")
	cmd.Flags().StringVar(&opts.tables, "tables", "", "YAML file with extra table definitions")
	cmd.MarkFlagRequired("table")
	return cmd
}

func loadCache(path string) (*schema.Cache, error) {
	cache := schema.NewCache()
	if path != "" {
		if err := cache.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

func runTransform(cmd *cobra.Command, rootOpts *RootOptions, opts *transformOptions, sql string) error {
	cache, err := loadCache(opts.tables)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", opts.timezone, err)
	}
	trOpts := []viewtable.Option{viewtable.WithLocation(loc)}
	if opts.today != "" {
		day, err := time.ParseInLocation(viewtable.DateLayout, opts.today, loc)
		if err != nil {
			return fmt.Errorf("invalid --today %q: %w", opts.today, err)
		}
		trOpts = append(trOpts, viewtable.WithClock(func() time.Time { return day }))
	}

	res, err := viewtable.New(cache, trOpts...).Transform(viewtable.Request{
		Query:     sql,
		Table:     opts.table,
		CompanyID: opts.company,
		User:      viewtable.User{UserID: opts.user, UseInttID: opts.intt},
	})
	if err != nil {
		return err
	}
	return emit(cmd, rootOpts, res.Query, map[string]any{
		"query":       res.Query,
		"date_ranges": res.DateRanges,
		"scopes":      res.Scopes,
		"future_date": res.FutureDate,
	})
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	var table, tables string
	cmd := &cobra.Command{
		Use:   "order <sql|->",
		Short: "Add a deterministic ORDER BY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := input(cmd, args[0])
			if err != nil {
				return err
			}
			cache, err := loadCache(tables)
			if err != nil {
				return err
			}
			def, err := cache.Lookup(table)
			if err != nil {
				return err
			}
			out := query.AddOrderBy(sql, def)
			return emit(cmd, rootOpts, out, map[string]string{"query": out})
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "logical table key (amt, trsc, stock)")
	cmd.Flags().StringVar(&tables, "tables", "", "YAML file with extra table definitions")
	cmd.MarkFlagRequired("table")
	return cmd
}

// NewLimitCommand creates the limit command.
func NewLimitCommand(rootOpts *RootOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "limit <sql|->",
		Short: "Add LIMIT/OFFSET when the query has no LIMIT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := input(cmd, args[0])
			if err != nil {
				return err
			}
			if offset < 0 {
				return fmt.Errorf("invalid offset %d", offset)
			}
			out := query.AddLimit(sql, query.NormalizeLimit(limit), offset)
			return emit(cmd, rootOpts, out, map[string]string{"query": out})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", query.DefaultLimit, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "row offset")
	return cmd
}

// NewPaginateCommand creates the paginate command.
func NewPaginateCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "paginate <sql|->",
		Short: "Advance the query's OFFSET by one page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := input(cmd, args[0])
			if err != nil {
				return err
			}
			out := query.Pagination(sql, query.NormalizeLimit(limit))
			return emit(cmd, rootOpts, out, map[string]string{"query": out})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", query.DefaultLimit, "page size")
	return cmd
}
