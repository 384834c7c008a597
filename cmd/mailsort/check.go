package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// checkSample is classified after loading to prove the pipeline runs end
// to end.
const checkSample = "URGENT: Server is down! Need immediate action to restore services."

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the model artifacts exist and load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			ok := true
			for _, f := range []struct{ label, path string }{
				{"vectorizer", cfg.Engine.VectorizerFile()},
				{"classifier", cfg.Engine.ClassifierFile()},
			} {
				if _, err := os.Stat(f.path); err != nil {
					report(w, false, "%s %s: %v", f.label, f.path, err)
					ok = false
					continue
				}
				report(w, true, "%s %s", f.label, f.path)
			}
			if !ok {
				return errors.New("missing model artifacts")
			}

			eng, err := loadEngine(cfg.Engine)
			if err != nil {
				return err
			}
			defer eng.Close()
			if !eng.Ready() {
				report(w, false, "load: %v", eng.LoadErr())
				return errors.New("model failed to load")
			}
			report(w, true, "loaded: %d features, %d categories", eng.InputDim(), len(eng.Categories()))

			res := eng.Predict(checkSample)
			if !res.Success {
				report(w, false, "sample prediction: %s", res.Error)
				return errors.New("sample prediction failed")
			}
			report(w, true, "sample prediction: %s (%.2f%%)", res.Category, res.Confidence)
			return nil
		},
	}
}

func report(w io.Writer, ok bool, format string, args ...any) {
	mark := color.GreenString("✓")
	if !ok {
		mark = color.RedString("✗")
	}
	fmt.Fprintf(w, "%s %s\n", mark, fmt.Sprintf(format, args...))
}
