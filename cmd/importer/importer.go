// Package importer contains the command that loads tags from a YAML file.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/zetsubou/tagstore/cmd/exec_common"
	"github.com/zetsubou/tagstore/cmd/util"
	"github.com/zetsubou/tagstore/internal/tag"
	"github.com/zetsubou/tagstore/pkg/id"
	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/storage"
)

func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Insert the tags of a YAML file",
		Long: `Insert the tags of a YAML file in file order.

A tag may name earlier tags of the same file as categories, synonyms or representative.
Attribute definitions named by a tag are created when they do not exist yet.`,
		RunE: runImport,
		Args: cobra.ExactArgs(1),
	}

	exec_common.AddServiceFlags(cmd.Flags())
	cmd.PreRun = exec_common.BindServiceFlagsFunc(cmd.Flags())

	return cmd
}

// File is the document read by the import command.
type File struct {
	Tags []Entry `json:"tags"`
}

// Entry describes one tag by the names of the tags it links to.
type Entry struct {
	// ID updates an existing tag instead of creating one.
	ID             *int64            `json:"id,omitempty"`
	Name           string            `json:"name"`
	Categories     []string          `json:"categories,omitempty"`
	Synonyms       []string          `json:"synonyms,omitempty"`
	Representative string            `json:"representative,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// Summary reports one import run.
type Summary struct {
	RunID    string           `json:"run_id"`
	Inserted int              `json:"inserted"`
	IDs      map[string]int64 `json:"ids"`
}

// ParseFile decodes a YAML import file. Unknown fields are rejected.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	for i, e := range f.Tags {
		if e.Name == "" {
			return nil, fmt.Errorf("parse import file: tag #%d has no name", i+1)
		}
	}
	return &f, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	f, err := ParseFile(data)
	if err != nil {
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

	summary, err := Import(cmd.Context(), rt.Service, rt.Datastore, f, rt.Logger)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

// Import inserts the tags of f in order. It stops at the first failing tag; tags
// inserted before it are kept.
func Import(ctx context.Context, svc *tag.Service, attrs storage.AttributeBackend, f *File, l logger.Logger) (*Summary, error) {
	runID, err := id.NewRunID()
	if err != nil {
		return nil, err
	}
	l = l.With(zap.String("run_id", runID))
	l.Info("import started", zap.Int("tags", len(f.Tags)))

	summary := &Summary{RunID: runID, IDs: make(map[string]int64, len(f.Tags))}
	attributeIDs := make(map[string]int64)

	for _, e := range f.Tags {
		spec, err := resolve(ctx, e, summary.IDs, attributeIDs, attrs)
		if err != nil {
			return summary, err
		}

		row, err := svc.Insert(ctx, spec)
		if err != nil {
			return summary, fmt.Errorf("insert tag %q: %w", e.Name, err)
		}
		summary.IDs[e.Name] = row.ID
		summary.Inserted++

		l.Debug("tag imported", zap.String("name", e.Name), zap.Int64("tag_id", row.ID))
	}

	l.Info("import finished", zap.Int("inserted", summary.Inserted))

	return summary, nil
}

func resolve(ctx context.Context, e Entry, tags, attributes map[string]int64, attrs storage.AttributeBackend) (tag.Spec, error) {
	spec := tag.Spec{ID: e.ID, Name: e.Name}

	lookup := func(name string) (int64, error) {
		tagID, ok := tags[name]
		if !ok {
			return 0, fmt.Errorf("tag %q references unknown tag %q", e.Name, name)
		}
		return tagID, nil
	}

	for _, name := range e.Categories {
		tagID, err := lookup(name)
		if err != nil {
			return spec, err
		}
		spec.CategoryIDs = append(spec.CategoryIDs, tagID)
	}
	for _, name := range e.Synonyms {
		tagID, err := lookup(name)
		if err != nil {
			return spec, err
		}
		spec.SynonymIDs = append(spec.SynonymIDs, tagID)
	}
	if e.Representative != "" {
		tagID, err := lookup(e.Representative)
		if err != nil {
			return spec, err
		}
		spec.RepresentativeID = &tagID
	}

	if len(e.Attributes) > 0 {
		spec.Attributes = make(map[int64]string, len(e.Attributes))
	}
	for name, value := range e.Attributes {
		attrID, ok := attributes[name]
		if !ok {
			attr, err := attrs.ReadAttributeByName(ctx, name)
			if errors.Is(err, storage.ErrNotFound) {
				attr, err = attrs.CreateAttribute(ctx, name)
			}
			if err != nil {
				return spec, fmt.Errorf("attribute %q: %w", name, err)
			}
			attrID = attr.ID
			attributes[name] = attrID
		}
		spec.Attributes[attrID] = value
	}

	return spec, nil
}
