package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/a3tai/casedocs/internal/assembly"
	"github.com/a3tai/casedocs/internal/caserecord"
	"github.com/a3tai/casedocs/internal/pdf/form"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func newFormsCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "forms",
		Short: "List the forms that can be filled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			forms := a.assembler.Forms()
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), forms)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FORM\tREVISION\tTEMPLATE\tREQUEST FLAG\tTITLE")
			for _, f := range forms {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Form, strings.Join(f.Revisions, ","), f.Template, f.RequestFlag, f.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text, json")
	return cmd
}

func newFieldsCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "fields <form-id|file.pdf>",
		Short: "List the fields of a registered form or of a PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			var (
				fields []form.Field
				err    error
			)
			if strings.EqualFold(filepath.Ext(target), ".pdf") {
				var data []byte
				data, err = os.ReadFile(target)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", target, err)
				}
				fields, err = assembly.FieldsFromBytes(data)
			} else {
				fields, err = a.assembler.Fields(cmd.Context(), target)
			}
			if err != nil {
				return err
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"source": target,
					"total":  len(fields),
					"fields": fields,
				})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tPAGE\tVALUE\tOPTIONS")
			for _, f := range fields {
				name := f.Name
				if f.ReadOnly {
					name += " (read-only)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", name, f.Type, f.Page, f.Value, strings.Join(f.Options, ","))
			}
			fmt.Fprintf(tw, "\n%d fields\n", len(fields))
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text, json")
	return cmd
}

func newFillCmd(a *app) *cobra.Command {
	var formID, casePath, out string

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill one form from a case file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := readCase(cmd, casePath)
			if err != nil {
				return err
			}

			doc, err := a.assembler.Fill(cmd.Context(), formID, rec.Normalize())
			if err != nil {
				return err
			}

			dir, name := a.cfg.OutputDir, doc.FileName()
			if out != "" {
				dir, name = filepath.Dir(out), filepath.Base(out)
			}
			fsys, err := assembly.OutputDir(dir)
			if err != nil {
				return err
			}
			if err := doc.Save(fsys, name); err != nil {
				return err
			}

			for _, msg := range doc.FieldErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Filled %s@%s: %d assigned, %d skipped -> %s\n",
				doc.Form, doc.Revision, doc.Summary.Assigned, len(doc.Fields.Skipped), filepath.Join(dir, name))
			return nil
		},
	}

	cmd.Flags().StringVar(&formID, "form", "", "Form to fill, as form or form@revision")
	cmd.Flags().StringVar(&casePath, "case", "", "Case JSON file, or - for stdin")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default <output>/<output key>.pdf)")
	_ = cmd.MarkFlagRequired("form")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		casePath string
		outDir   string
		forms    []string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fill every form a case asks for",
		Long: `Fill a batch of forms for one case. Without --forms the forms are chosen
by the request flags in the case file (generate_pcor, generate_502d, ...).
Documents that fail do not stop the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := readCase(cmd, casePath)
			if err != nil {
				return err
			}

			result := a.assembler.Generate(cmd.Context(), assembly.Request{Record: rec, Forms: forms})

			if outDir == "" {
				outDir = a.cfg.OutputDir
			}
			var names []string
			if result.Success() {
				fsys, err := assembly.OutputDir(outDir)
				if err != nil {
					return err
				}
				if names, err = result.Save(fsys); err != nil {
					return err
				}
			}

			if format == formatJSON {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				printBatch(cmd.OutOrStdout(), result, outDir, names)
			}

			if !result.Success() {
				return fmt.Errorf("%s", strings.ToLower(result.Message()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&casePath, "case", "", "Case JSON file, or - for stdin")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory the documents are written to (default --output)")
	cmd.Flags().StringSliceVar(&forms, "forms", nil, "Forms to fill instead of the case's request flags")
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text, json")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func printBatch(w io.Writer, result *assembly.BatchResult, dir string, names []string) {
	fmt.Fprintf(w, "Batch %s", result.BatchID)
	if result.CaseNumber != "" {
		fmt.Fprintf(w, " (case %s)", result.CaseNumber)
	}
	fmt.Fprintf(w, ": %s\n", result.Message())

	for _, name := range names {
		fmt.Fprintf(w, "  ✓ %s\n", filepath.Join(dir, name))
	}
	for _, f := range result.Errors {
		fmt.Fprintf(w, "  ✗ %s [%s]: %s\n", f.Form, f.Kind, f.Message)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}
}

// readCase loads the case record from path, or from stdin when path is "-"
func readCase(cmd *cobra.Command, path string) (*caserecord.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read case data: %w", err)
	}

	rec, err := caserecord.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
