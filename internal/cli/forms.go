package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	theme "github.com/goliatone/go-theme"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-syncconsole/internal/catalog"
	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/pkg/adapter"
	"github.com/goliatone/go-syncconsole/pkg/form"
	"github.com/goliatone/go-syncconsole/pkg/prompt"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/validation"
)

// schemaFlags selects a schema either from a file or from the catalog.
type schemaFlags struct {
	schemaPath string
	uiPath     string
	connector  string
	kind       string
}

func (f *schemaFlags) bind(cmd *cobra.Command, withFile bool) {
	if withFile {
		cmd.Flags().StringVar(&f.schemaPath, "schema", "", "JSON or YAML schema file")
		cmd.Flags().StringVar(&f.uiPath, "ui", "", "JSON or YAML UI schema file")
	}
	cmd.Flags().StringVar(&f.connector, "connector", "", "Connector type from the catalog, e.g. postgres")
	cmd.Flags().StringVar(&f.kind, "kind", string(domain.KindSource), "Connector kind (source|destination)")
}

// resolve returns the schema, UI schema and defaults to work with.
func (f *schemaFlags) resolve(cmd *cobra.Command, a *app) (*schema.Schema, schema.UISchema, map[string]any, error) {
	if f.schemaPath != "" {
		raw, err := os.ReadFile(f.schemaPath)
		if err != nil {
			return nil, nil, nil, err
		}
		s, err := schema.Parse(raw)
		if err != nil {
			return nil, nil, nil, err
		}
		var ui schema.UISchema
		if f.uiPath != "" {
			raw, err := os.ReadFile(f.uiPath)
			if err != nil {
				return nil, nil, nil, err
			}
			if ui, err = schema.ParseUI(raw); err != nil {
				return nil, nil, nil, err
			}
		}
		return s, ui, s.Defaults(), nil
	}
	if f.connector == "" {
		return nil, nil, nil, errors.New("either --schema or --connector is required")
	}
	kind, ok := domain.ParseConnectorKind(f.kind)
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown connector kind %q", f.kind)
	}
	holder, err := loadCatalog(cmd.Context(), a.cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	conn, err := holder.Catalog().Lookup(kind, f.connector)
	if err != nil {
		return nil, nil, nil, err
	}
	return conn.Schema, conn.UI, conn.Defaults(), nil
}

func formID(f *schemaFlags) string {
	if f.connector != "" {
		return f.kind + "-" + f.connector
	}
	return "form"
}

func readData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := adapter.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("read data %s: %w", path, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newValidateCmd() *cobra.Command {
	var (
		sf       schemaFlags
		dataPath string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate data against a schema and print the errors as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			s, _, _, err := sf.resolve(cmd, a)
			if err != nil {
				return err
			}
			data, err := readData(dataPath)
			if err != nil {
				return err
			}
			if data == nil {
				data = map[string]any{}
			}
			errs := validation.Live(data, s)
			if errs == nil {
				errs = map[string][]string{}
			}
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{
				"valid":   len(errs) == 0,
				"errors":  errs,
				"summary": validation.Summary(errs),
			}); err != nil {
				return err
			}
			if len(errs) > 0 {
				return errSilent
			}
			return nil
		},
	}
	sf.bind(cmd, true)
	cmd.Flags().StringVar(&dataPath, "data", "", "JSON data file")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var (
		sf       schemaFlags
		dataPath string
		action   string
		themeID  string
		variant  string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a schema as an HTML form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			s, ui, defaults, err := sf.resolve(cmd, a)
			if err != nil {
				return err
			}
			data, err := readData(dataPath)
			if err != nil {
				return err
			}
			validate := data != nil
			if data == nil {
				data = defaults
			}
			var opts []form.Option
			if themeID != "" {
				opts = append(opts, form.WithTheme(&theme.RendererConfig{Theme: themeID, Variant: variant}))
			}
			ad := adapter.New(form.New(opts...), s, adapter.WithID(formID(&sf)), adapter.WithUISchema(ui))
			html, err := ad.Render(cmd.Context(), form.Form{
				Action:   action,
				Data:     data,
				Validate: validate,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(html))
			return err
		},
	}
	sf.bind(cmd, true)
	cmd.Flags().StringVar(&dataPath, "data", "", "JSON data to prefill and validate")
	cmd.Flags().StringVar(&action, "action", "", "Form action URL")
	cmd.Flags().StringVar(&themeID, "theme", "", "Theme name written on the form element")
	cmd.Flags().StringVar(&variant, "variant", "", "Theme variant")
	return cmd
}

func newPromptCmd(driver prompt.Driver) *cobra.Command {
	var (
		sf       schemaFlags
		attempts int
	)
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Fill a connector configuration interactively and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			s, ui, defaults, err := sf.resolve(cmd, a)
			if err != nil {
				return err
			}
			filler := prompt.New(prompt.WithDriver(driver), prompt.WithAttempts(attempts))
			data, err := filler.Fill(cmd.Context(), s, ui, defaults)
			if errors.Is(err, prompt.ErrAborted) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
				return errSilent
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
	sf.bind(cmd, false)
	cmd.Flags().IntVar(&attempts, "attempts", 3, "Rounds of re-prompting for missing required fields")
	return cmd
}
