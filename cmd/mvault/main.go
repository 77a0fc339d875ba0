package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit()
	case "serve":
		cmdServe()
	case "status":
		cmdStatus()
	case "unlock":
		cmdUnlock()
	case "lock":
		cmdLock()
	case "list":
		cmdList()
	case "get":
		cmdGet()
	case "add":
		cmdAdd()
	case "remove":
		cmdRemove()
	case "export":
		cmdExport()
	case "import":
		cmdImport()
	case "change-password":
		cmdChangePassword()
	case "audit":
		cmdAudit()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: mvault <command> [args]

Commands:
  init                     Create a new vault with a master password
  serve                    Run the vault server in the foreground
  status                   Show vault status
  unlock                   Unlock the vault (requires a running server)
  lock                     Lock the vault
  list                     List stored credentials (no passwords)
  get <id>                 Reveal one credential
  add <url> <username>     Add a credential (prompts for the password)
  remove <id>              Remove a credential
  export [container]       Export entries as CSV, or as an encrypted container
  import <file> [mode]     Import a CSV or container file (mode: add|replace)
  change-password          Change the master password
  audit                    Show the access audit log`)
}
