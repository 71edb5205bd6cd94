package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/1ureka/janken/internal/config"
	"github.com/1ureka/janken/internal/util"
)

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("JANKEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "janken",
		Short:   "Peer-to-peer rock-paper-scissors over WebRTC, no server required.",
		Args:    cobra.NoArgs,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, link, err := runInteractive()
			if err != nil {
				return err
			}
			cfg.Role = role
			if link != "" {
				cfg.Link = link
			}
			return start(cmd, cfg)
		},
	}

	host := &cobra.Command{
		Use:   "host",
		Short: "Create a room and invite an opponent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleHost
			return start(cmd, cfg)
		},
	}

	join := &cobra.Command{
		Use:   "join [link]",
		Short: "Join a room from the host's link, code or JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleGuest
			if len(args) == 1 {
				cfg.Link = args[0]
			}
			return start(cmd, cfg)
		},
	}

	cmd.AddCommand(host, join)

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringSliceVar(&cfg.STUNServers, "stun", cfg.STUNServers, "STUN servers used to discover public addresses (env: JANKEN_STUN)")
	fs.BoolVar(&cfg.IncludeLoopback, "loopback", false, "also offer loopback addresses, for two players on one machine (env: JANKEN_LOOPBACK)")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "page the share link points at (env: JANKEN_BASE_URL)")
	fs.StringVar(&cfg.UIAddr, "ui-addr", cfg.UIAddr, "address of the local display page, empty to disable (env: JANKEN_UI_ADDR)")
	fs.IntVar(&cfg.QRSize, "qr-size", cfg.QRSize, "edge length of the QR code PNG in pixels (env: JANKEN_QR_SIZE)")
	fs.StringVar(&cfg.QRPath, "qr-file", "", "also write the share QR code to this PNG file (env: JANKEN_QR_FILE)")
	fs.StringSliceVar(&cfg.ScanFiles, "scan", nil, "image files to scan for the opponent's QR code (env: JANKEN_SCAN)")
	fs.BoolVar(&cfg.Clipboard, "clipboard", false, "copy the share link to the clipboard (env: JANKEN_CLIPBOARD)")
	fs.BoolVarP(&cfg.Debug, "debug", "d", false, "enable debug logging (env: JANKEN_DEBUG)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("janken v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// start validates the configuration and runs the chosen role.
func start(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Debug {
		util.EnableDebug()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pterm.Info.Println(fmt.Sprintf("Janken — v%s", version))
	pterm.Println()

	return run(cmd.Context(), *cfg)
}

// runInteractive asks for the role when no subcommand is given.
func runInteractive() (config.Role, string, error) {
	choice, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host  — Create a room", "Guest — Join a room"}).
		WithDefaultText("Select your role").
		Show()
	if err != nil {
		return "", "", err
	}

	pterm.Println()

	if strings.HasPrefix(choice, "Host") {
		return config.RoleHost, "", nil
	}

	link, err := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Host's link or code (leave empty to paste or scan later)").
		Show()
	if err != nil {
		return "", "", err
	}
	pterm.Println()

	return config.RoleGuest, strings.TrimSpace(link), nil
}
