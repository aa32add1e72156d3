// Command flashlog manages a log store kept in a file that emulates a
// NOR flash partition.
package main

import (
	"os"

	"github.com/kjk/flashlog/log"
	"github.com/maruel/subcommands"
)

var application = &subcommands.DefaultApplication{
	Name:  "flashlog",
	Title: "Flash log storage utility",
	Commands: []*subcommands.Command{
		subcommands.CmdHelp,

		&subcommandShell,
		&subcommandAppend,
		&subcommandDump,
		&subcommandCat,
		&subcommandPost,
		&subcommandUpload,
	},
}

func main() {
	// stdout is for command output
	log.Default.Stdout = os.Stderr
	os.Exit(subcommands.Run(application, nil))
}
