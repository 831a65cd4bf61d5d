package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dealroom/api/internal/infra/presets"
	"github.com/dealroom/api/pkg/domain/permission"
)

type presetView struct {
	Name       string                                        `json:"name" yaml:"name"`
	Label      string                                        `json:"label" yaml:"label"`
	Color      string                                        `json:"color,omitempty" yaml:"color,omitempty"`
	Grants     []permission.Key                              `json:"grants" yaml:"grants"`
	Visibility map[permission.VisibilityKey]permission.Scope `json:"visibility" yaml:"visibility"`
}

func toPresetView(p permission.RolePreset) presetView {
	return presetView{
		Name:       p.Name,
		Label:      p.Label,
		Color:      p.Color,
		Grants:     p.Grants,
		Visibility: p.Visibility,
	}
}

type resolvedView struct {
	RoleType    string                                        `json:"role_type" yaml:"role_type"`
	Drifted     bool                                          `json:"drifted" yaml:"drifted"`
	Permissions map[permission.Key]bool                       `json:"permissions" yaml:"permissions"`
	Visibility  map[permission.VisibilityKey]permission.Scope `json:"visibility" yaml:"visibility"`
	Overrides   []permission.Override                         `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Effective   map[permission.Key]bool                       `json:"effective" yaml:"effective"`
}

// loadResolver reads --presets-file, which may be an s3:// location
// resolved through the default AWS credential chain.
func loadResolver(cmd *cobra.Command) (*permission.Resolver, error) {
	return presets.LoadResolver(cmd.Context(), flagPresetsFile, presets.S3Config{})
}

// =============================================================================
// presets
// =============================================================================

func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Inspect role presets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List role presets",
		Args:  cobra.NoArgs,
		RunE:  runPresetsList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Show one role preset",
		Args:  cobra.ExactArgs(1),
		RunE:  runPresetsShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print the active tables as a preset file",
		Args:  cobra.NoArgs,
		RunE:  runPresetsExport,
	})
	return cmd
}

func runPresetsList(cmd *cobra.Command, _ []string) error {
	resolver, err := loadResolver(cmd)
	if err != nil {
		return err
	}
	all := resolver.Presets().All()
	views := make([]presetView, len(all))
	for i, p := range all {
		views[i] = toPresetView(p)
	}

	return render(cmd.OutOrStdout(), views, func(w io.Writer) {
		t := newTable(w, "NAME", "LABEL", "GRANTS", "FINANCIALS")
		for _, p := range views {
			t.AddRow(p.Name, p.Label, strconv.Itoa(len(p.Grants)), p.Visibility[permission.VisibilityFinancials].String())
		}
		t.Flush()
	})
}

func runPresetsShow(cmd *cobra.Command, args []string) error {
	resolver, err := loadResolver(cmd)
	if err != nil {
		return err
	}
	preset, err := resolver.Presets().Get(args[0])
	if err != nil {
		return err
	}
	state, err := resolver.ApplyPreset(preset.Name)
	if err != nil {
		return err
	}

	return render(cmd.OutOrStdout(), toPresetView(preset), func(w io.Writer) {
		fmt.Fprintf(w, "Name:   %s\nLabel:  %s\n\n", preset.Name, preset.Label)
		printState(w, resolver, state, state.Permissions)
	})
}

func runPresetsExport(cmd *cobra.Command, _ []string) error {
	resolver, err := loadResolver(cmd)
	if err != nil {
		return err
	}
	file := presets.Export(resolver.Catalog(), resolver.Presets())

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("marshal YAML: %w", err)
	}
	return enc.Close()
}

// =============================================================================
// catalog
// =============================================================================

type catalogView struct {
	Categories     []categoryView             `json:"categories" yaml:"categories"`
	VisibilityKeys []permission.VisibilityKey `json:"visibility_keys" yaml:"visibility_keys"`
	Scopes         []permission.Scope         `json:"scopes" yaml:"scopes"`
}

type categoryView struct {
	Name string           `json:"name" yaml:"name"`
	Keys []permission.Key `json:"keys" yaml:"keys"`
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List permission keys and visibility keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := loadResolver(cmd)
			if err != nil {
				return err
			}
			catalog := resolver.Catalog()
			view := catalogView{
				VisibilityKeys: catalog.VisibilityKeys(),
				Scopes:         permission.AllScopes(),
			}
			for _, c := range catalog.Categories() {
				view.Categories = append(view.Categories, categoryView{Name: c.Name, Keys: c.Keys})
			}

			return render(cmd.OutOrStdout(), view, func(w io.Writer) {
				t := newTable(w, "CATEGORY", "KEY")
				for _, c := range view.Categories {
					for _, k := range c.Keys {
						t.AddRow(c.Name, k.String())
					}
				}
				for _, k := range view.VisibilityKeys {
					t.AddRow("Visibility", k.String())
				}
				t.Flush()
			})
		},
	}
}

// =============================================================================
// resolve
// =============================================================================

type resolveOptions struct {
	preset     string
	toggles    []string
	visibility []string
	overrides  []string
	enableAll  bool
	disableAll bool
}

func newResolveCmd() *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a preset with edits and overrides applied",
		Long: `Resolve starts from a preset and applies, in order: enable-all or
disable-all, each --toggle, each --visibility, then --override on top.`,
		Example: `  dealroom-admin resolve --preset investor --toggle export_data --visibility financials=own_only
  dealroom-admin resolve --preset observer --override send_messages=true -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := loadResolver(cmd)
			if err != nil {
				return err
			}
			view, err := opts.resolve(resolver)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), view, func(w io.Writer) {
				fmt.Fprintf(w, "Role:     %s\nDrifted:  %s\n\n", view.RoleType, boolToStr(view.Drifted))
				printState(w, resolver, permission.State{
					RoleType:    view.RoleType,
					Permissions: view.Permissions,
					Visibility:  view.Visibility,
				}, view.Effective)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.preset, "preset", "", "Preset to start from")
	f.StringArrayVar(&opts.toggles, "toggle", nil, "Permission key to flip (repeatable)")
	f.StringArrayVar(&opts.visibility, "visibility", nil, "KEY=SCOPE visibility edit (repeatable)")
	f.StringArrayVar(&opts.overrides, "override", nil, "KEY=true|false override (repeatable)")
	f.BoolVar(&opts.enableAll, "enable-all", false, "Grant every permission")
	f.BoolVar(&opts.disableAll, "disable-all", false, "Deny every permission and hide every category")
	_ = cmd.MarkFlagRequired("preset")
	cmd.MarkFlagsMutuallyExclusive("enable-all", "disable-all")
	return cmd
}

func (o *resolveOptions) resolve(resolver *permission.Resolver) (resolvedView, error) {
	state, err := resolver.ApplyPreset(o.preset)
	if err != nil {
		return resolvedView{}, err
	}

	switch {
	case o.enableAll:
		state = resolver.EnableAll(state)
	case o.disableAll:
		state = resolver.DisableAll(state)
	}

	for _, key := range o.toggles {
		if state, err = resolver.TogglePermission(state, permission.Key(key)); err != nil {
			return resolvedView{}, err
		}
	}

	for _, raw := range o.visibility {
		key, scope, err := splitPair(raw)
		if err != nil {
			return resolvedView{}, fmt.Errorf("--visibility: %w", err)
		}
		if state, err = resolver.SetVisibility(state, permission.VisibilityKey(key), permission.Scope(scope)); err != nil {
			return resolvedView{}, err
		}
	}

	overrides, err := parseOverrides(o.overrides)
	if err != nil {
		return resolvedView{}, err
	}
	effective, err := resolver.ResolveEffectivePermissions(state, overrides)
	if err != nil {
		return resolvedView{}, err
	}

	return resolvedView{
		RoleType:    state.RoleType,
		Drifted:     resolver.Drifted(state),
		Permissions: state.Permissions,
		Visibility:  state.Visibility,
		Overrides:   overrides,
		Effective:   effective,
	}, nil
}

func parseOverrides(raw []string) ([]permission.Override, error) {
	overrides := make([]permission.Override, 0, len(raw))
	for _, r := range raw {
		key, value, err := splitPair(r)
		if err != nil {
			return nil, fmt.Errorf("--override: %w", err)
		}
		granted, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("--override %s: %q is not a boolean", key, value)
		}
		overrides = append(overrides, permission.Override{Key: permission.Key(key), Granted: granted})
	}
	return overrides, nil
}

func splitPair(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return "", "", errors.New("expected KEY=VALUE, got " + strconv.Quote(raw))
	}
	return key, value, nil
}

// printState writes permissions by category with the effective value next to
// the base one, followed by the visibility mapping.
func printState(w io.Writer, resolver *permission.Resolver, state permission.State, effective map[permission.Key]bool) {
	t := newTable(w, "CATEGORY", "PERMISSION", "BASE", "EFFECTIVE")
	for _, c := range resolver.Catalog().Categories() {
		for _, k := range c.Keys {
			t.AddRow(c.Name, k.String(), boolToStr(state.Permissions[k]), boolToStr(effective[k]))
		}
	}
	t.Flush()

	fmt.Fprintln(w)
	t = newTable(w, "VISIBILITY", "SCOPE")
	for _, k := range resolver.Catalog().VisibilityKeys() {
		t.AddRow(k.String(), state.Visibility[k].String())
	}
	t.Flush()
}
