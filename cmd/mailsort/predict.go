package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newPredictCmd() *cobra.Command {
	var (
		file   string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "predict [text...]",
		Short: "Classify a single email",
		Long:  "Classify one email given as arguments, with --file, or on stdin when no text is given.",
		Example: `  mailsort predict "URGENT: Server is down! Need immediate action."
  mailsort predict --file message.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			text, err := readText(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}

			eng, err := loadEngine(cfg.Engine)
			if err != nil {
				return err
			}
			defer eng.Close()

			res := eng.Predict(text)

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Success {
				return res.Err()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the email from a file")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "indent JSON output")
	return cmd
}

func readText(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case len(args) > 0 && file != "":
		return "", errors.New("give the email as arguments or with --file, not both")
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
}
