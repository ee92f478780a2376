package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sourcerer/lib/osc"
)

const usage = `usage: sourcererctl [--addr=host:port] <command> [args]

commands:
  take <index|name>        take a source, queued if a transition is running
  force <index|name>       cut to a source, clearing the queue
  take-selected            take the selected source
  select <index>           move the selection
  clear                    clear the pending queue
  skip                     drop all but the last pending take
  queue on|off             enable or disable queueing
  done                     fire the manual done condition
  trigger <name> [0|1]     set a trigger signal, default 1
  state                    print the switcher state
  report                   print the playback report
  watch                    print state updates until interrupted
`

func main() {
	addr := "127.0.0.1:53535"
	if v := os.Getenv("SOURCERER_OSC_ADDR"); v != "" {
		addr = v
	}
	var args []string
	for _, arg := range os.Args[1:] {
		if v, ok := strings.CutPrefix(arg, "--addr="); ok {
			addr = v
		} else {
			args = append(args, arg)
		}
	}
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	client, err := osc.Dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := run(client, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(client *osc.Client, cmd string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s)\n\n%s", cmd, n, usage)
		}
		return nil
	}

	switch cmd {
	case "take", "force":
		if err := need(1); err != nil {
			return err
		}
		addr := "/take"
		if cmd == "force" {
			addr = "/take/force"
		}
		return request(client, addr, ident(args[0]))
	case "take-selected":
		return request(client, "/take/selected")
	case "select":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("select: %w", err)
		}
		return request(client, "/select", int32(n))
	case "clear":
		return request(client, "/queue/clear")
	case "skip":
		return request(client, "/queue/skip")
	case "queue":
		if err := need(1); err != nil {
			return err
		}
		return request(client, "/queue/enable", args[0] == "on")
	case "done":
		return request(client, "/done")
	case "trigger":
		if err := need(1); err != nil {
			return err
		}
		level := len(args) < 2 || args[1] != "0"
		return request(client, "/trigger/"+args[0], level)
	case "state":
		return request(client, "/state")
	case "report":
		return request(client, "/report")
	case "watch":
		if err := request(client, "/state"); err != nil {
			return err
		}
		for u := range client.Updates() {
			fmt.Println(u.Address, u.Args)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

// ident sends numbers as ints so the server treats them as indexes.
func ident(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return int32(n)
	}
	return s
}

func request(client *osc.Client, addr string, args ...any) error {
	reply, err := client.Request(addr, args...)
	if err != nil {
		return err
	}
	if len(reply.Data) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(reply.Data, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
