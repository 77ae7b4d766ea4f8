// Package searchtags contains the command that pages through the tag index.
package searchtags

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zetsubou/tagstore/cmd/exec_common"
	"github.com/zetsubou/tagstore/cmd/util"
	"github.com/zetsubou/tagstore/internal/query"
	"github.com/zetsubou/tagstore/internal/tag"
)

const (
	keywordsFlag = "keywords"
	pageFlag     = "page"
	sizeFlag     = "size"
	analyzerFlag = "analyzer"
	boolFlag     = "bool"
	randomFlag   = "random"
	seedFlag     = "seed"
)

func NewSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the tag index",
		Long: `Search the tag index and print one page of projections as JSON.

Pages are 1-based. Pages past the result window of the index are reached by chaining
search_after cursors.`,
		RunE: runSearch,
		Args: cobra.NoArgs,
	}

	flags := cmd.Flags()
	flags.String(keywordsFlag, "", "the keywords to match; field:value pairs target a single field and quoted phrases stay whole")
	flags.Int(pageFlag, 1, "the 1-based page to return")
	flags.Int(sizeFlag, 0, "the page size (defaults to 'tag.query.pageSize')")
	flags.String(analyzerFlag, query.AnalyzerDefault.String(), "the analyzer whose fields are matched")
	flags.String(boolFlag, "", "how keywords combine ('should' or 'must', defaults to 'tag.query.boolOp')")
	flags.Bool(randomFlag, false, "order the page randomly, reproducibly for a given --seed")
	flags.Int64(seedFlag, 0, "the seed of --random")
	exec_common.AddServiceFlags(flags)

	// NOTE: if you add a new flag here, update the function below, too

	cmd.PreRun = bindRunFlagsFunc(flags)

	return cmd
}

func bindRunFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	bindServiceFlags := exec_common.BindServiceFlagsFunc(flags)
	return func(command *cobra.Command, args []string) {
		util.MustBindPFlag(keywordsFlag, flags.Lookup(keywordsFlag))
		util.MustBindPFlag(pageFlag, flags.Lookup(pageFlag))
		util.MustBindPFlag(sizeFlag, flags.Lookup(sizeFlag))
		util.MustBindPFlag(analyzerFlag, flags.Lookup(analyzerFlag))
		util.MustBindPFlag(boolFlag, flags.Lookup(boolFlag))
		util.MustBindPFlag(randomFlag, flags.Lookup(randomFlag))
		util.MustBindPFlag(seedFlag, flags.Lookup(seedFlag))
		bindServiceFlags(command, args)
	}
}

// Request is one search issued by the command.
type Request struct {
	Keywords string
	Page     int
	Size     int
	Analyzer string
	BoolOp   string
	Random   bool
	Seed     int64
}

func (r Request) options() ([]query.MatchOption, error) {
	analyzer, err := query.ParseAnalyzer(r.Analyzer)
	if err != nil {
		return nil, err
	}
	opts := []query.MatchOption{query.WithAnalyzer(analyzer)}

	if r.BoolOp != "" {
		op, err := query.ParseBoolOp(r.BoolOp)
		if err != nil {
			return nil, err
		}
		opts = append(opts, query.WithMatchBoolOp(op))
	}
	if r.Size > 0 {
		opts = append(opts, query.WithSize(r.Size))
	}
	if r.Random {
		opts = append(opts, query.WithSeed(r.Seed))
	}
	return opts, nil
}

// Run executes req against svc and writes the page as JSON to w.
func Run(ctx context.Context, svc *tag.Service, req Request, w io.Writer) error {
	opts, err := req.options()
	if err != nil {
		return err
	}

	var page *query.Page[tag.Projection]
	if req.Random {
		page, err = svc.Engine().Random(ctx, req.Page, req.Keywords, opts...)
	} else {
		page, err = svc.Search(ctx, req.Page, req.Keywords, opts...)
	}
	if err != nil {
		return err
	}

	marshalled, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(marshalled))
	return err
}

func runSearch(cmd *cobra.Command, _ []string) error {
	req := Request{
		Keywords: viper.GetString(keywordsFlag),
		Page:     viper.GetInt(pageFlag),
		Size:     viper.GetInt(sizeFlag),
		Analyzer: viper.GetString(analyzerFlag),
		BoolOp:   viper.GetString(boolFlag),
		Random:   viper.GetBool(randomFlag),
		Seed:     viper.GetInt64(seedFlag),
	}
	if _, err := req.options(); err != nil {
		return err
	}

	cfg, err := util.ReadConfig()
	if err != nil {
		return err
	}
	rt, err := exec_common.Bootstrap(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return Run(cmd.Context(), rt.Service, req, cmd.OutOrStdout())
}
