package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/proxtrend/internal/config"
	"github.com/sweeney/proxtrend/internal/logging"
	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/source"
)

func newReadCommand(v *viper.Viper, flags *globalFlags) *cobra.Command {
	var bed, controller string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read both proximity tags of a bed once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, flags)
			if err != nil {
				return err
			}
			logger, closer, err := logging.New(cfg.Logging())
			if err != nil {
				return err
			}
			defer closer.Close()
			opener := source.Dialer{MQTT: cfg.MQTTOptions(), Logger: logger}
			return runRead(cmd.Context(), cmd.OutOrStdout(), cfg, opener, controller, bed)
		},
	}
	cmd.Flags().StringVar(&bed, "bed", "", "bed to read (required)")
	cmd.Flags().StringVar(&controller, "controller", "", "controller address (looked up from the bed when empty)")
	if err := cmd.MarkFlagRequired("bed"); err != nil {
		panic(err)
	}
	return cmd
}

// runRead opens one bed, reads it once and prints both levels.
func runRead(ctx context.Context, out io.Writer, cfg config.Config, opener source.Opener, controller, bed string) error {
	table := cfg.Plant()
	var (
		c   plant.Controller
		err error
	)
	if controller == "" {
		c, err = table.FindBed(bed)
	} else {
		c, err = table.Lookup(controller, bed)
	}
	if err != nil {
		return err
	}

	tags := plant.TagsFor(bed)
	src, err := opener.Open(ctx, c, tags)
	if err != nil {
		return fmt.Errorf("open %s on %s: %w", bed, c.Address, err)
	}
	defer src.Close()

	p1, p2, err := src.Read(tags.Prox1, tags.Prox2)
	if err != nil {
		return fmt.Errorf("read %s: %w", bed, err)
	}
	fmt.Fprintf(out, "Prox1: %s, Prox2: %s\n", stateString(p1), stateString(p2))
	return nil
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func newBedsCommand(v *viper.Viper, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "beds",
		Short: "List the configured controllers and beds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, flags)
			if err != nil {
				return err
			}
			printBeds(cmd.OutOrStdout(), cfg.Plant())
			return nil
		},
	}
}

func printBeds(out io.Writer, table plant.Table) {
	for _, c := range table {
		fmt.Fprintf(out, "%-10s %-15s %-4s %s\n", c.Label, c.Address, c.SourceKind(), strings.Join(c.Beds, " "))
	}
}
