package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "encode":
		err = runEncode(args, os.Stdout)
	case "decode":
		err = runDecode(args, os.Stdout)
	case "sim":
		err = runSim(args)
	case "migrate":
		err = runMigrate(args, os.Stdout)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`drivectl - drive protocol toolbox

Usage: drivectl <command> [options]

Commands:
  encode     Build a frame and print it as hex
             -type DRIVE|SLEEP|RESPONSE -seq N [-ack] [-body "1,10,90"]
  decode     Parse hex frames (one per argument, or a stream with -stream)
  sim        Connect to the gateway as a simulated robot and acknowledge commands
             -addr host:port [-telemetry 5s]
  migrate    Apply or roll back the database schema
             [-config file] [-dsn url] [-dir path] up | down [steps] | status
  help       Show this help message`)
}
