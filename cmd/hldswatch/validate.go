package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <configfile>",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without querying or restarting any server.`,
	Args:  configFileArg,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := cfg.Settings

	// Print configuration summary
	fmt.Fprintln(out, "Configuration is valid!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Settings:")
	fmt.Fprintf(out, "  Check interval: %s\n", s.CheckInterval)
	fmt.Fprintf(out, "  Query: %d attempts, %s timeout, %s wait\n", s.QueryRetries, s.QueryTimeout, s.RetryWait)
	fmt.Fprintf(out, "  Restart grace: %s\n", s.RestartGrace)
	fmt.Fprintf(out, "  Workers: %d\n", s.Workers)
	if s.LogFile != "" {
		fmt.Fprintf(out, "  Log file: %s\n", s.LogFile)
	}
	if s.MetricsAddr != "" {
		fmt.Fprintf(out, "  Metrics: %s\n", s.MetricsAddr)
	}
	fmt.Fprintf(out, "  Telegram: %v\n", s.Telegram != nil)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Servers (%d):\n", len(cfg.Targets))
	for _, t := range cfg.Targets {
		tc := t.Config
		action := "log only"
		switch {
		case tc.AutoRestart:
			action = fmt.Sprintf("restart in screen %q from %s", tc.ScreenName, tc.StartDir)
		case tc.FallbackCommand() != "":
			action = fmt.Sprintf("run %q", tc.FallbackCommand())
		}
		fmt.Fprintf(out, "  %s (%s): %s\n", t.Address, tc.Engine, action)

		if tc.Remote != nil {
			fmt.Fprintf(out, "    via SSH %s@%s:%d\n", tc.Remote.Username, tc.Remote.Host, tc.Remote.Port)
		}
		if tc.Wake != nil {
			fmt.Fprintf(out, "    Wake-on-LAN %s via %s\n", tc.Wake.MACAddress, tc.Wake.BroadcastIP)
		}
	}

	return nil
}
