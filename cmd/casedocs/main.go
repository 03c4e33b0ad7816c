// Command casedocs fills legal and BOE PDF forms from case data on the command line.
package main

import (
	"fmt"
	"os"

	"github.com/a3tai/casedocs/internal/assembly"
	"github.com/a3tai/casedocs/internal/config"
	"github.com/a3tai/casedocs/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev" // This will be set by build flags

// app carries what every subcommand needs once the root command has run
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	assembler *assembly.Assembler
}

// newRootCmd builds the command tree. Configuration comes from flags and
// CASEDOCS_* environment variables, in that order of precedence.
func newRootCmd() *cobra.Command {
	a := &app{}
	v := viper.New()
	base := config.DefaultConfig()
	base.Mode = config.ModeCLI

	root := &cobra.Command{
		Use:   "casedocs",
		Short: "Fill legal and BOE PDF forms from case data",
		Long: `casedocs resolves the fields of blank PDF forms against a case record
and writes the filled documents.

Examples:
  # List the forms that can be filled
  casedocs forms

  # Show the fields of a form or of any PDF
  casedocs fields boe-502-d
  casedocs fields ./templates/BOE-502-A.pdf --format json

  # Fill one form
  casedocs fill --form boe-502-d --case case.json --out ./out/502d.pdf

  # Fill every form the case asks for
  casedocs generate --case case.json --out-dir ./out`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v.Set(config.KeyMode, config.ModeCLI)
			cfg, err := config.FromViper(v, base)
			if err != nil {
				return err
			}

			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cfg.IsDebug() {
				for key, value := range v.AllSettings() {
					log.Debugf("Setting: %s = %v", key, value)
				}
			}

			assembler, err := assembly.FromConfig(cfg, log)
			if err != nil {
				return err
			}

			a.cfg, a.log, a.assembler = cfg, log, assembler
			return nil
		},
	}

	config.BindFlags(root.PersistentFlags(), v, base,
		config.KeyTemplates,
		config.KeyTemplateURL,
		config.KeyMappings,
		config.KeyOutput,
		config.KeyLogLevel,
		config.KeyLogFormat,
		config.KeyWorkers,
	)

	root.AddCommand(
		newFormsCmd(a),
		newFieldsCmd(a),
		newFillCmd(a),
		newGenerateCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
