// Janken CLI entry point.
//
// Two players connect their terminals directly over a WebRTC data channel and
// play rock-paper-scissors. No server relays the game: the offer and answer
// travel as links, QR codes or pasted text.
//
// It can be launched interactively (no subcommand) or non-interactively via
// the host and join subcommands.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/1ureka/janken/internal/config"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Default()
	cobra.CheckErr(newCmd(&cfg).ExecuteContext(ctx))
}
