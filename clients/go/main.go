// ThreatJam CLI - command line client for the ThreatJam room service
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nicholasgriffintn/threatjam.com/clients/go/threatjam"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("THREATJAM_URL")
	client := threatjam.NewClient(baseURL)
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "create":
		requireArgs(4, "Usage: threatjam create <room-key> <name>")
		record, err := client.CreateRoom(os.Args[2], os.Args[3])
		exitOnError(err)
		printJSON(record)

	case "join":
		requireArgs(4, "Usage: threatjam join <room-key> <name>")
		record, err := client.JoinRoom(os.Args[2], os.Args[3])
		exitOnError(err)
		printJSON(record)

	case "settings":
		requireArgs(3, "Usage: threatjam settings <room-key>")
		settings, err := client.GetSettings(os.Args[2])
		exitOnError(err)
		printJSON(settings)

	case "set":
		requireArgs(6, "Usage: threatjam set <room-key> <name> <key> <value>")
		value, _ := json.Marshal(os.Args[5])
		patch := threatjam.Settings{os.Args[4]: value}
		settings, err := client.UpdateSettings(os.Args[2], os.Args[3], patch)
		exitOnError(err)
		printJSON(settings)

	case "watch":
		requireArgs(4, "Usage: threatjam watch <room-key> <name>")
		ch, err := client.OpenChannel(os.Args[2], os.Args[3])
		exitOnError(err)
		defer ch.Close()
		err = ch.Listen(func(msg *threatjam.ChannelMessage) bool {
			fmt.Printf("%s %s\n", msg.Type, string(msg.Raw))
			return true
		})
		exitOnError(err)

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `ThreatJam CLI

Commands:
  health                                Server health
  create <room-key> <name>              Create a room (you become moderator)
  join <room-key> <name>                Join a room
  settings <room-key>                   Show room settings
  set <room-key> <name> <key> <value>   Update one setting (moderator only)
  watch <room-key> <name>               Connect and stream room events

Environment:
  THREATJAM_URL   Server base URL (default http://localhost:8080)`)
}

func requireArgs(n int, msg string) {
	if len(os.Args) < n {
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(1)
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	exitOnError(err)
	fmt.Println(string(out))
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
