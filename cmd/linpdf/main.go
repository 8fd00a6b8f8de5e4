// Command linpdf builds a linearized PDF from a small JSON document
// description. It exists so the writer core is runnable end to end; the
// core itself (package writer) has no CLI or flag-parsing concerns.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/wudi/linpdf/writer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "linpdf:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LINPDF")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "linpdf",
		Short: "Build linearized ('fast web view') PDF files",
	}
	root.PersistentFlags().String("config", "", "path to linpdf.yaml")
	root.PersistentFlags().String("version", "1.7", "PDF version to declare in the header")
	root.PersistentFlags().Bool("deterministic", true, "derive the trailer /ID from document content instead of randomness")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("version", root.PersistentFlags().Lookup("version"))
	_ = v.BindPFlag("deterministic", root.PersistentFlags().Lookup("deterministic"))

	root.AddCommand(newBuildCmd(v))
	return root
}

func newBuildCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "build <doc.json> <out.pdf>",
		Short: "Render a JSON document description to a linearized PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath := v.GetString("config"); cfgPath != "" {
				v.SetConfigFile(cfgPath)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config: %w", err)
				}
			}

			spec, err := loadDocSpec(args[0])
			if err != nil {
				return err
			}
			doc := spec.toDocument()

			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer out.Close()

			zapLog, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer zapLog.Sync()

			cfg := writer.Config{
				Version:       writer.PDFVersion(v.GetString("version")),
				Linearize:     true,
				Deterministic: v.GetBool("deterministic"),
				Logger:        newZapLogger(zapLog),
				Tracer:        newOtelTracer(otel.Tracer("linpdf")),
			}

			w := writer.NewWriter()
			if err := w.Write(cmd.Context(), doc, out, cfg); err != nil {
				return fmt.Errorf("linearizing: %w", err)
			}
			return nil
		},
	}
}
