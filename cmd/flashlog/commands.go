package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kjk/flashlog/dump"
	"github.com/kjk/flashlog/log"
	"github.com/kjk/flashlog/shell"
	"github.com/maruel/subcommands"
)

var cliLog = log.Register("flashlog", log.LevelDbg)

func errorf(a subcommands.Application, format string, args ...any) int {
	fmt.Fprintf(a.GetErr(), format+"\n", args...)
	return 1
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: log_storage
////////////////////////////////////////////////////////////////////////////////

type cmdRunShell struct {
	subcommands.CommandRunBase
	storeFlags
}

var subcommandShell = subcommands.Command{
	UsageLine: "log_storage <export_status|clear|export|list_log_levels|set_log_level|status|config|help> [args]",
	ShortDesc: "Runs a log storage command.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunShell
		cmd.storeFlags.register(&cmd.Flags)
		return &cmd
	},
}

func (cmd *cmdRunShell) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	e, err := cmd.open()
	if err != nil {
		return errorf(a, "%s", err)
	}
	defer e.close()
	if err = shell.Run(e.Env, args, a.GetOut()); err != nil {
		return 1
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: append
////////////////////////////////////////////////////////////////////////////////

type cmdRunAppend struct {
	subcommands.CommandRunBase
	storeFlags

	level string
}

var subcommandAppend = subcommands.Command{
	UsageLine: "append [-level inf]",
	ShortDesc: "Logs lines read from stdin.",
	LongDesc:  "Logs every line read from stdin. Lines are stored in flash if the level is enabled.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunAppend
		cmd.storeFlags.register(&cmd.Flags)
		cmd.Flags.StringVar(&cmd.level, "level", "inf", "Level of the logged lines (err, wrn, inf, dbg).")
		return &cmd
	},
}

func (cmd *cmdRunAppend) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	level, err := log.ParseLevel(cmd.level)
	if err != nil || level == log.LevelOff {
		return errorf(a, "invalid -level '%s'", cmd.level)
	}
	e, err := cmd.open()
	if err != nil {
		return errorf(a, "%s", err)
	}
	defer e.close()

	logf := map[log.Level]func(string, ...any){
		log.LevelErr: cliLog.Errf,
		log.LevelWrn: cliLog.Wrnf,
		log.LevelInf: cliLog.Inff,
		log.LevelDbg: cliLog.Dbgf,
	}[level]
	scanner := bufio.NewScanner(os.Stdin)
	n := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		logf("%s", line)
		n++
	}
	e.Backend.Flush()
	if err = scanner.Err(); err != nil {
		return errorf(a, "failed to read stdin: %s", err)
	}
	fmt.Fprintf(a.GetOut(), "logged %d lines, dropped: %d, failed: %d\n", n, e.Backend.Dropped(), e.Backend.Failed())
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: dump
////////////////////////////////////////////////////////////////////////////////

type cmdRunDump struct {
	subcommands.CommandRunBase
	storeFlags

	out   string
	clear bool
}

var subcommandDump = subcommands.Command{
	UsageLine: "dump -o <file>",
	ShortDesc: "Writes stored logs to a file.",
	LongDesc:  "Writes stored logs to a file, compressed if the file name ends with .zst, .br or .gz.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunDump
		cmd.storeFlags.register(&cmd.Flags)
		cmd.Flags.StringVar(&cmd.out, "o", "", "Output file.")
		cmd.Flags.BoolVar(&cmd.clear, "clear", false, "Clear stored logs after a successful dump.")
		return &cmd
	},
}

func (cmd *cmdRunDump) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if cmd.out == "" {
		return errorf(a, "missing required argument -o")
	}
	e, err := cmd.open()
	if err != nil {
		return errorf(a, "%s", err)
	}
	defer e.close()
	n, err := dump.WriteFile(e.Store, cmd.out, nil)
	if err != nil {
		return errorf(a, "failed to write '%s': %s", cmd.out, err)
	}
	fmt.Fprintf(a.GetOut(), "wrote %d bytes of logs to '%s'\n", n, cmd.out)
	return cmd.maybeClear(a, e)
}

func (cmd *cmdRunDump) maybeClear(a subcommands.Application, e *env) int {
	if !cmd.clear {
		return 0
	}
	if err := e.Store.Clear(); err != nil {
		return errorf(a, "failed to clear: %s", err)
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: cat
////////////////////////////////////////////////////////////////////////////////

type cmdRunCat struct {
	subcommands.CommandRunBase
}

var subcommandCat = subcommands.Command{
	UsageLine: "cat <file>...",
	ShortDesc: "Prints dump files, decompressing them.",
	CommandRun: func() subcommands.CommandRun {
		return &cmdRunCat{}
	},
}

func (cmd *cmdRunCat) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) == 0 {
		return errorf(a, "no files given")
	}
	for _, path := range args {
		d, err := dump.ReadFile(path)
		if err != nil {
			return errorf(a, "failed to read '%s': %s", path, err)
		}
		_, _ = a.GetOut().Write(d)
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: post
////////////////////////////////////////////////////////////////////////////////

type cmdRunPost struct {
	subcommands.CommandRunBase
	storeFlags
	dump.PostConfig
}

var subcommandPost = subcommands.Command{
	UsageLine: "post -url <url>",
	ShortDesc: "Sends stored logs to a server.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunPost
		cmd.storeFlags.register(&cmd.Flags)
		cmd.Flags.StringVar(&cmd.URL, "url", "", "URL to POST logs to.")
		cmd.Flags.StringVar(&cmd.ApiKey, "api-key", os.Getenv("FLASHLOG_API_KEY"), "Sent as X-Api-Key header.")
		cmd.Flags.BoolVar(&cmd.Compress, "zstd", false, "Compress the body with zstd.")
		return &cmd
	},
}

func (cmd *cmdRunPost) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if cmd.URL == "" {
		return errorf(a, "missing required argument -url")
	}
	e, err := cmd.open()
	if err != nil {
		return errorf(a, "%s", err)
	}
	defer e.close()
	n, err := dump.Post(context.Background(), e.Store, &cmd.PostConfig, nil)
	if err != nil {
		return errorf(a, "POST %s failed: %s", cmd.URL, err)
	}
	fmt.Fprintf(a.GetOut(), "sent %d bytes of logs\n", n)
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: upload
////////////////////////////////////////////////////////////////////////////////

type cmdRunUpload struct {
	subcommands.CommandRunBase
	storeFlags
	dump.UploaderConfig
}

var subcommandUpload = subcommands.Command{
	UsageLine: "upload -endpoint <host> -bucket <name>",
	ShortDesc: "Uploads stored logs to an S3-compatible bucket.",
	LongDesc:  "Uploads stored logs to an S3-compatible bucket. Credentials are read from FLASHLOG_S3_ACCESS and FLASHLOG_S3_SECRET.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunUpload
		cmd.storeFlags.register(&cmd.Flags)
		cmd.Flags.StringVar(&cmd.Endpoint, "endpoint", "", "S3 endpoint, e.g. s3.amazonaws.com.")
		cmd.Flags.StringVar(&cmd.Bucket, "bucket", "", "Bucket name.")
		cmd.Flags.StringVar(&cmd.Region, "region", "", "Bucket region.")
		cmd.Flags.StringVar(&cmd.Prefix, "prefix", "flashlog", "Prefix of object names.")
		cmd.Flags.BoolVar(&cmd.Insecure, "insecure", false, "Use plain http.")
		return &cmd
	},
}

func (cmd *cmdRunUpload) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	cmd.Access = os.Getenv("FLASHLOG_S3_ACCESS")
	cmd.Secret = os.Getenv("FLASHLOG_S3_SECRET")
	ctx := context.Background()
	u, err := dump.NewUploader(ctx, &cmd.UploaderConfig)
	if err != nil {
		return errorf(a, "%s", err)
	}
	e, err := cmd.open()
	if err != nil {
		return errorf(a, "%s", err)
	}
	defer e.close()
	name, err := u.Upload(ctx, e.Store, nil)
	if err != nil {
		return errorf(a, "upload failed: %s", err)
	}
	fmt.Fprintf(a.GetOut(), "uploaded as '%s'\n", name)
	return 0
}
