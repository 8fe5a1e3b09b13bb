package main

import "github.com/spf13/pflag"

// daemonArgs holds the command-line options accepted by chronoqd.
type daemonArgs struct {
	ConfigPath  string
	ShowVersion bool
}

func parseFlags() daemonArgs {
	var args daemonArgs

	pflag.StringVarP(&args.ConfigPath, "config", "c", "chronoq.json", "Path to chronoqd JSON config file")
	pflag.BoolVar(&args.ShowVersion, "version", false, "Print version and exit")
	pflag.Parse()

	return args
}
