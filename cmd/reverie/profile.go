package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/scrypster/reverie/internal/app"
	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// profileDoc is the YAML form of the profile read by `profile set --file`
// and printed by `profile show`.
type profileDoc struct {
	Background      string        `yaml:"background_info"`
	Goals           string        `yaml:"goals"`
	CurrentProjects string        `yaml:"current_projects"`
	Other           string        `yaml:"other"`
	NameMappings    []nameMapping `yaml:"name_mappings,omitempty"`
}

type nameMapping struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

func docFromProfile(p *types.UserProfile) profileDoc {
	doc := profileDoc{
		Background:      p.Background,
		Goals:           p.Goals,
		CurrentProjects: p.CurrentProjects,
		Other:           p.Other,
	}
	for _, m := range p.NameMappings {
		doc.NameMappings = append(doc.NameMappings, nameMapping(m))
	}
	return doc
}

func (d profileDoc) profile() *types.UserProfile {
	p := &types.UserProfile{
		Background:      d.Background,
		Goals:           d.Goals,
		CurrentProjects: d.CurrentProjects,
		Other:           d.Other,
		NameMappings:    []types.NameMapping{},
	}
	for _, m := range d.NameMappings {
		p.NameMappings = append(p.NameMappings, types.NameMapping(m))
	}
	return p
}

func newProfileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the background Reverie uses when answering",
	}
	cmd.AddCommand(newProfileShowCmd(c))
	cmd.AddCommand(newProfileSetCmd(c))
	return cmd
}

func newProfileShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the profile as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(c.cfg.Storage)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := loadProfile(cmd, store)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(docFromProfile(p))
		},
	}
}

func newProfileSetCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the profile from a YAML file, or update single fields",
		Long: `Replace the profile from a YAML file with --file, or change individual
fields with --background, --goals, --projects, --other and --name.
Fields that are not given keep their stored value.

--name takes "Name" or "Name=description" and may be repeated; giving any
--name replaces the stored list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(c.cfg.Storage)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var doc profileDoc
			if path, _ := cmd.Flags().GetString("file"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("parse %s: %w", path, err)
				}
			} else {
				current, err := loadProfile(cmd, store)
				if err != nil {
					return err
				}
				doc = docFromProfile(current)
			}

			flags := cmd.Flags()
			for flag, field := range map[string]*string{
				"background": &doc.Background,
				"goals":      &doc.Goals,
				"projects":   &doc.CurrentProjects,
				"other":      &doc.Other,
			} {
				if flags.Changed(flag) {
					*field, _ = flags.GetString(flag)
				}
			}
			if flags.Changed("name") {
				names, _ := flags.GetStringArray("name")
				doc.NameMappings = parseNames(names)
			}

			if err := store.SaveProfile(cmd.Context(), doc.profile()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile saved")
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "YAML file holding the whole profile")
	cmd.Flags().String("background", "", "Background information")
	cmd.Flags().String("goals", "", "Goals")
	cmd.Flags().String("projects", "", "Current projects")
	cmd.Flags().String("other", "", "Anything else worth knowing")
	cmd.Flags().StringArray("name", nil, `Person the journal mentions, as "Name" or "Name=description"`)
	return cmd
}

func loadProfile(cmd *cobra.Command, store storage.ProfileStore) (*types.UserProfile, error) {
	p, err := store.LoadProfile(cmd.Context())
	if errors.Is(err, storage.ErrNotFound) {
		return &types.UserProfile{}, nil
	}
	return p, err
}

func parseNames(raw []string) []nameMapping {
	out := make([]nameMapping, 0, len(raw))
	for _, r := range raw {
		name, desc, _ := strings.Cut(r, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, nameMapping{Name: name, Description: strings.TrimSpace(desc)})
	}
	return out
}
