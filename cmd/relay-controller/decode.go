package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweeney/relay-controller/internal/command"
	"github.com/sweeney/relay-controller/internal/relay"
	"github.com/sweeney/relay-controller/internal/report"
)

type decodeFlags struct {
	uplink bool
	text   bool
}

func newDecodeCmd() *cobra.Command {
	flags := &decodeFlags{}

	cmd := &cobra.Command{
		Use:   "decode <payload>",
		Short: "Decode a payload offline",
		Long: `Classify and decode a downlink payload the way the daemon would, without
touching any relay. The payload is hex unless --text is given.`,
		Example: `  relay-controller decode 01 80 05
  relay-controller decode --text '{"relay":3,"state":"on","duration":10}'
  relay-controller decode --uplink 0500`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.uplink && flags.text {
				return fmt.Errorf("--uplink and --text are mutually exclusive")
			}
			return runDecode(cmd.OutOrStdout(), args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.uplink, "uplink", false, "Decode a status uplink instead of a downlink")
	cmd.Flags().BoolVar(&flags.text, "text", false, "Treat the arguments as a literal text payload")

	return cmd
}

func runDecode(w io.Writer, args []string, flags *decodeFlags) error {
	var payload []byte
	if flags.text {
		payload = []byte(strings.Join(args, " "))
	} else {
		var err error
		payload, err = parseHex(strings.Join(args, ""))
		if err != nil {
			return err
		}
	}

	if flags.uplink {
		states, err := report.Decode(payload)
		if err != nil {
			return err
		}
		for ch, on := range states {
			state := relay.StateOff
			if on {
				state = relay.StateOn
			}
			fmt.Fprintf(w, "Relay %d: %s\n", ch+1, state)
		}
		return nil
	}

	format, intents, err := command.Decode(payload)
	fmt.Fprintf(w, "format: %s\n", format)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if len(intents) == 0 {
		fmt.Fprintln(w, "no intents")
	}
	for _, in := range intents {
		if in.Channel < 0 || in.Channel >= relay.NumChannels {
			fmt.Fprintf(w, "%s (rejected: %v)\n", in, &relay.ValidationError{Channel: in.Channel})
			continue
		}
		fmt.Fprintln(w, in)
	}
	return nil
}

// parseHex accepts "01 80", "01:80", "0x0180" and "0180".
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse hex payload: %w", err)
	}
	return b, nil
}
